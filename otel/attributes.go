package otel

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	AttrPartition   = attribute.Key("logstream.partition")
	AttrTickStatus  = attribute.Key("logstream.tick.status")
	AttrFetchStatus = attribute.Key("logstream.fetch.status")
	AttrWriteStatus = attribute.Key("logstream.write.status")
	AttrPutStatus   = attribute.Key("logstream.generator.put.status")
	AttrSkipReason  = attribute.Key("logstream.skip.reason")
	AttrErrorAction = attribute.Key("logstream.error.action")
	AttrErrorPhase  = attribute.Key("logstream.error.phase")
	AttrStream      = attribute.Key("logstream.stream")
	AttrTickID      = attribute.Key("logstream.tick.id")
	AttrOffset      = attribute.Key("logstream.offset")
)

// Status values
const (
	StatusSuccess = "success"
	StatusStopped = "stopped"
	StatusFailed  = "failed"
	StatusError   = "error"
)
