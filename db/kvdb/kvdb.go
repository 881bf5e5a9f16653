package kvdb

const (
	SearchesBucket = "searches"
	IngestBucket   = "ingest"
	SettingsBucket = "settings"
	VersionsBucket = "versions"
)

var buckets = []string{SearchesBucket, IngestBucket, SettingsBucket, VersionsBucket}

type DB interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
	Delete(bucket string, key string) error
	GetAllKeys(bucket string) ([]string, error)
	Close() error
}
