package internal

import "expvar"

var (
	requestsTotal   = expvar.NewMap("gitfeed_requests_total")
	parseErrors     = expvar.NewMap("gitfeed_parse_errors_total")
	eventsIgnored   = expvar.NewMap("gitfeed_events_ignored_total")
	eventsStored    = expvar.NewMap("gitfeed_events_stored_total")
	eventsDuplicate = expvar.NewMap("gitfeed_events_duplicate_total")
	publishErrors   = expvar.NewMap("gitfeed_publish_errors_total")
)

func IncRequest(provider string) {
	requestsTotal.Add(provider, 1)
}

func IncParseError(provider string) {
	parseErrors.Add(provider, 1)
}

func IncIgnored(provider string) {
	eventsIgnored.Add(provider, 1)
}

func IncStored(action string) {
	eventsStored.Add(action, 1)
}

func IncDuplicate(action string) {
	eventsDuplicate.Add(action, 1)
}

func IncPublishError(driver string) {
	publishErrors.Add(driver, 1)
}
