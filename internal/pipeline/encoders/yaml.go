package encoders

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/infracollect/archivekit/internal/pipeline"
)

type YAMLEncoder struct {
	indent int
}

// NewYAMLEncoder returns a YAML encoder. Indent defaults to 2 spaces.
func NewYAMLEncoder(indent int) *YAMLEncoder {
	if indent <= 0 {
		indent = 2
	}
	return &YAMLEncoder{indent: indent}
}

func (e *YAMLEncoder) EncodeResult(_ context.Context, result pipeline.Result) (io.Reader, error) {
	var buff bytes.Buffer
	encoder := yaml.NewEncoder(&buff, yaml.Indent(e.indent), yaml.UseJSONMarshaler())
	if err := encoder.Encode(result.Data); err != nil {
		return nil, fmt.Errorf("failed to encode result as YAML: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode result as YAML: %w", err)
	}
	return &buff, nil
}

func (e *YAMLEncoder) FileExtension() string {
	return "yaml"
}
