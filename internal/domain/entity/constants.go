package entity

// Reserved metadata keys. Domain payloads may not use any key starting with ReservedPrefix.
const (
	ReservedPrefix = "_"

	KeyCreated                     = "_created"
	KeyLastUpdated                 = "_last_updated"
	KeyOverriddenByUser            = "_overridden_by_user"
	KeyOverrideTimestamp           = "_override_timestamp"
	KeyRetroactivelyUpdatedByTask3 = "_retroactively_updated_by_task3"
	KeyRetroactiveUpdateTimestamp  = "_retroactive_update_timestamp"
	KeyOriginalExplanation         = "_original_explanation"
)

// Task field names
const (
	FieldRelevance               = "relevance"
	FieldLearning                = "learning"
	FieldClarity                 = "clarity"
	FieldAspects                 = "aspects"
	FieldExplanation             = "explanation"
	FieldExecution               = "execution"
	FieldSupportingDocsAvailable = "supporting_docs_available"
)

// Execution values accepted by the task 2 quality gate
const (
	ExecutionNotApplicable = "N/A"
	ExecutionExecutable    = "Executable"
)

// SystemActor is recorded on history rows written by derivation and reconciliation
const SystemActor = "system"
