// Package encoders turns task results into bytes.
package encoders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/infracollect/archivekit/internal/pipeline"
)

type JSONEncoder struct {
	indent string
}

// NewJSONEncoder returns a JSON encoder. An empty indent gives compact
// output.
func NewJSONEncoder(indent string) *JSONEncoder {
	return &JSONEncoder{indent: indent}
}

func (e *JSONEncoder) EncodeResult(_ context.Context, result pipeline.Result) (io.Reader, error) {
	var buff bytes.Buffer
	encoder := json.NewEncoder(&buff)
	if e.indent != "" {
		encoder.SetIndent("", e.indent)
	}

	if err := encoder.Encode(result.Data); err != nil {
		return nil, fmt.Errorf("failed to encode result as JSON: %w", err)
	}

	return &buff, nil
}

func (e *JSONEncoder) FileExtension() string {
	return "json"
}
