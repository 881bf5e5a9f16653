package strategy

import (
	"context"

	"github.com/meghashyamc/churnsearch/logger"
	"github.com/meghashyamc/churnsearch/services/search"
)

// Name is the name the adapter registers under.
const Name = "myStrategy"

// Adapter decorates the default engine: requests go out with debug on and
// every snapshot comes back marked as satisfied.
type Adapter struct {
	logger     logger.Logger
	underlying search.Searcher
}

// New resolves the default engine from the registry.
func New(logger logger.Logger, registry *search.Registry) (*Adapter, error) {
	underlying, err := registry.Get(search.DefaultStrategy)
	if err != nil {
		return nil, err
	}
	return Wrap(logger, underlying), nil
}

func Wrap(logger logger.Logger, underlying search.Searcher) *Adapter {
	return &Adapter{logger: logger, underlying: underlying}
}

func (a *Adapter) Search(ctx context.Context, request *search.Request, options search.Options) (<-chan *search.Response, error) {
	outbound := &search.Request{}
	if request != nil {
		*outbound = *request
	}
	outbound.Debug = true

	in, err := a.underlying.Search(ctx, outbound, options)
	if err != nil {
		return nil, err
	}

	out := make(chan *search.Response)
	go func() {
		defer close(out)
		for {
			select {
			case snapshot, ok := <-in:
				if !ok {
					return
				}
				if snapshot == nil {
					continue
				}
				tagged := snapshot.Clone()
				tagged.Satisfied = true
				select {
				case out <- tagged:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Cancel forwards to the underlying engine when it supports cancellation.
func (a *Adapter) Cancel(ctx context.Context, id string) error {
	canceller, ok := a.underlying.(search.Canceller)
	if !ok {
		a.logger.Debug("underlying search strategy cannot cancel", "id", id)
		return nil
	}
	return canceller.Cancel(ctx, id)
}
