package ui

import (
	"github.com/meghashyamc/churnsearch/services/notify"
	"github.com/meghashyamc/churnsearch/services/session"
)

// resultsMsg carries a new primary result set
type resultsMsg struct {
	results *session.ResultSet
}

// sideResultsMsg carries the answer of the side channel
type sideResultsMsg struct {
	results *session.SideResult
}

// toastMsg carries a notification
type toastMsg struct {
	toast notify.Toast
}

// submittedMsg is the outcome of submitting the query
type submittedMsg struct {
	subscription *session.Subscription
	err          error
}
