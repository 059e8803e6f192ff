package pipeline

type Result struct {
	ID   string            `json:"id" yaml:"id"`
	Data any               `json:"data" yaml:"data"`
	Meta map[string]string `json:"meta,omitempty" yaml:"meta,omitempty"`
}
