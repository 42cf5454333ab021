package api

// Config represents an nbgrader configuration file.
// Sections are named after the component they configure. YAML files decode
// through the yaml tags; JSON files are read key by key with JSONPath in
// internal/config, so the json tags only name the keys those paths use.
type Config struct {
	// Application holds process-wide settings.
	Application Application `json:"Application" yaml:"Application"`
	// CourseDirectory describes where course files and the gradebook live.
	CourseDirectory CourseDirectory `json:"CourseDirectory" yaml:"CourseDirectory"`
	// ZipReleaseFeedbackApp configures the feedback archive command.
	ZipReleaseFeedbackApp ZipReleaseFeedback `json:"ZipReleaseFeedbackApp" yaml:"ZipReleaseFeedbackApp"`
}

// Application holds process-wide settings.
type Application struct {
	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// CourseDirectory describes the on-disk course layout.
type CourseDirectory struct {
	Root              string `json:"root,omitempty" yaml:"root,omitempty"`
	SourceDirectory   string `json:"source_directory,omitempty" yaml:"source_directory,omitempty"`
	FeedbackDirectory string `json:"feedback_directory,omitempty" yaml:"feedback_directory,omitempty"`
	AssignmentID      string `json:"assignment_id,omitempty" yaml:"assignment_id,omitempty"`
	CourseID          string `json:"course_id,omitempty" yaml:"course_id,omitempty"`
	DBURL             string `json:"db_url,omitempty" yaml:"db_url,omitempty"`
}

// ZipReleaseFeedback configures the feedback archive.
// IncludeSource is a pointer so an explicit false survives merging.
type ZipReleaseFeedback struct {
	DirnameSuffix   *string `json:"dirname_suffix,omitempty" yaml:"dirname_suffix,omitempty"`
	SolutionPrefix  *string `json:"solution_prefix,omitempty" yaml:"solution_prefix,omitempty"`
	OutputDirectory string  `json:"output_directory,omitempty" yaml:"output_directory,omitempty"`
	IncludeSource   *bool   `json:"include_source,omitempty" yaml:"include_source,omitempty"`
}
