// Package v1 defines the job file format.
package v1

const ArchiveJobKind = "ArchiveJob"

type ArchiveJob struct {
	Kind     string         `yaml:"kind" json:"kind" validate:"required,eq=ArchiveJob"`
	Metadata Metadata       `yaml:"metadata" json:"metadata"`
	Spec     ArchiveJobSpec `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

type ArchiveJobSpec struct {
	// Engine selects the compression engine (default: the builtin engine).
	Engine *EngineSpec `yaml:"engine,omitempty" json:"engine,omitempty"`

	// HTTP configures downloads of http(s) sources.
	HTTP *HTTPSpec `yaml:"http,omitempty" json:"http,omitempty"`

	Tasks []Task `yaml:"tasks" json:"tasks" validate:"required,min=1,dive"`

	Output *OutputSpec `yaml:"output,omitempty" json:"output,omitempty"`
}

type EngineSpec struct {
	// Module is the engine module path, or the name of a statically linked
	// engine.
	Module string `yaml:"module" json:"module" validate:"required" template:""`
	// Loader is "static" or "plugin" (default: static).
	Loader string `yaml:"loader,omitempty" json:"loader,omitempty" validate:"omitempty,oneof=static plugin"`
}

type HTTPSpec struct {
	Headers map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// Timeout in seconds.
	Timeout  *int `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"omitempty,min=1"`
	Insecure bool `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

// Task is one unit of work. Exactly one of List, Extract or Compress is set.
type Task struct {
	ID       string        `yaml:"id" json:"id" validate:"required"`
	List     *ListTask     `yaml:"list,omitempty" json:"list,omitempty"`
	Extract  *ExtractTask  `yaml:"extract,omitempty" json:"extract,omitempty"`
	Compress *CompressTask `yaml:"compress,omitempty" json:"compress,omitempty"`
}

// ListTask enumerates an archive's items.
type ListTask struct {
	// Source is a local path or an http(s) URL.
	Source string `yaml:"source" json:"source" validate:"required" template:""`
	// Format overrides detection from the source's extension.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// ExtractTask unpacks an archive into a directory.
type ExtractTask struct {
	Source      string `yaml:"source" json:"source" validate:"required" template:""`
	Destination string `yaml:"destination" json:"destination" validate:"required" template:""`
	Format      string `yaml:"format,omitempty" json:"format,omitempty"`
}

// CompressTask builds an archive from local files and directories.
type CompressTask struct {
	Sources     []string `yaml:"sources" json:"sources" validate:"required,min=1,dive,required" template:""`
	Destination string   `yaml:"destination" json:"destination" validate:"required" template:""`
	Format      string   `yaml:"format,omitempty" json:"format,omitempty"`
	// NamePrefix is prepended to every archive path.
	NamePrefix string `yaml:"name_prefix,omitempty" json:"name_prefix,omitempty" template:""`
	// Filter is a CEL expression over name, size, dir and mtime. Entries
	// for which it is false are left out.
	Filter string `yaml:"filter,omitempty" json:"filter,omitempty" template:"-"`
}

// OutputSpec configures how task results are written.
type OutputSpec struct {
	// Encoding configures the result format (default: compact JSON).
	Encoding *EncodingSpec `yaml:"encoding,omitempty" json:"encoding,omitempty"`
	// Sink configures where results are written (default: stdout).
	Sink *SinkSpec `yaml:"sink,omitempty" json:"sink,omitempty"`
	// Archive bundles every result into one archive built by the engine.
	Archive *ArchiveSpec `yaml:"archive,omitempty" json:"archive,omitempty"`
}

// EncodingSpec configures the encoder (one of the fields should be set).
type EncodingSpec struct {
	JSON *JSONEncodingSpec `yaml:"json,omitempty" json:"json,omitempty"`
	YAML *YAMLEncodingSpec `yaml:"yaml,omitempty" json:"yaml,omitempty"`
}

type JSONEncodingSpec struct {
	// Indent specifies indentation. Empty = compact, "  " = 2 spaces, "\t" = tabs.
	Indent string `yaml:"indent,omitempty" json:"indent,omitempty"`
}

type YAMLEncodingSpec struct {
	Indent int `yaml:"indent,omitempty" json:"indent,omitempty" validate:"omitempty,min=1,max=8"`
}

// SinkSpec configures the result destination (one of the fields should be set).
type SinkSpec struct {
	Stdout     *StdoutSinkSpec     `yaml:"stdout,omitempty" json:"stdout,omitempty"`
	Filesystem *FilesystemSinkSpec `yaml:"filesystem,omitempty" json:"filesystem,omitempty"`
	S3         *S3SinkSpec         `yaml:"s3,omitempty" json:"s3,omitempty"`
}

type StdoutSinkSpec struct{}

type FilesystemSinkSpec struct {
	// Path is the base directory (default: working directory).
	Path   *string `yaml:"path,omitempty" json:"path,omitempty" template:""`
	Prefix *string `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
}

type S3SinkSpec struct {
	Bucket         string         `yaml:"bucket" json:"bucket" validate:"required" template:""`
	Region         *string        `yaml:"region,omitempty" json:"region,omitempty" template:""`
	Endpoint       *string        `yaml:"endpoint,omitempty" json:"endpoint,omitempty" template:""`
	Prefix         *string        `yaml:"prefix,omitempty" json:"prefix,omitempty" template:""`
	ForcePathStyle bool           `yaml:"force_path_style,omitempty" json:"force_path_style,omitempty"`
	Credentials    *S3Credentials `yaml:"credentials,omitempty" json:"credentials,omitempty"`
}

type S3Credentials struct {
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id" validate:"required" template:""`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key" validate:"required" template:""`
}

type ArchiveSpec struct {
	// Name of the bundle without extension (default: the job name).
	Name string `yaml:"name,omitempty" json:"name,omitempty" template:""`
	// Format of the bundle (default: zip).
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}
