package pipeline

// Stage names one step of request processing. Stages run strictly in Stages order.
type Stage string

// Stages
const (
	StageStoreUpload  Stage = "store_upload"
	StageExtract      Stage = "extract"
	StageReference    Stage = "reference"
	StageCompose      Stage = "compose"
	StageRemoteCall   Stage = "remote_call"
	StageValidate     Stage = "validate"
	StageStageProfile Stage = "stage_profile"
	StageRender       Stage = "render"
	StageReadOutput   Stage = "read_output"
)

// Stage categories, used to group progress output
const (
	CategoryIngestion  = "ingestion"
	CategoryGeneration = "generation"
	CategoryRendering  = "rendering"
)

// StageDefinition describes a stage for progress reporting.
type StageDefinition struct {
	Name     Stage
	Category string
	Optional bool
}

// Stages lists every stage in execution order.
var Stages = []StageDefinition{
	{Name: StageStoreUpload, Category: CategoryIngestion},
	{Name: StageExtract, Category: CategoryIngestion},
	{Name: StageReference, Category: CategoryIngestion, Optional: true},
	{Name: StageCompose, Category: CategoryGeneration},
	{Name: StageRemoteCall, Category: CategoryGeneration},
	{Name: StageValidate, Category: CategoryGeneration},
	{Name: StageStageProfile, Category: CategoryRendering},
	{Name: StageRender, Category: CategoryRendering},
	{Name: StageReadOutput, Category: CategoryRendering},
}

// CategoryOf returns the category of a stage, or "" for unknown stages.
func CategoryOf(s Stage) string {
	for _, def := range Stages {
		if def.Name == s {
			return def.Category
		}
	}
	return ""
}

// ProgressEvent reports the completion of a stage.
type ProgressEvent struct {
	RequestID string `json:"request_id"`
	Stage     Stage  `json:"stage"`
	Category  string `json:"category"`
	Message   string `json:"message"`
}

// ProgressCallback is called after each completed stage.
type ProgressCallback func(event ProgressEvent)
