package config

type WorkerKeyStruct struct {
	AuditEventsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	AuditEventsQueue: "persist_audit_events_queue",
}
