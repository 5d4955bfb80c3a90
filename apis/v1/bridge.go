package v1

const BridgeKind = "Bridge"

type BridgeConfig struct {
	Kind     string     `yaml:"kind" json:"kind" validate:"required,eq=Bridge"`
	Metadata Metadata   `yaml:"metadata" json:"metadata"`
	Spec     BridgeSpec `yaml:"spec" json:"spec"`
}

type Metadata struct {
	Name string `yaml:"name" json:"name" validate:"required"`
}

type BridgeSpec struct {
	Remote  RemoteSpec   `yaml:"remote" json:"remote"`
	Server  ServerSpec   `yaml:"server" json:"server"`
	Tracing *TracingSpec `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// RemoteSpec describes the third-party statistics API.
type RemoteSpec struct {
	// BaseURL is the scheme and host of the remote API, e.g. https://cswatch.in.
	BaseURL string `yaml:"base_url" json:"base_url" validate:"required,http_url" template:""`

	// PathTemplate is resolved against BaseURL after replacing {id} with the
	// path-escaped identifier.
	PathTemplate string `yaml:"path_template" json:"path_template" validate:"required,contains={id}" template:""`

	// Timeout bounds the whole round trip, in seconds.
	Timeout *int `yaml:"timeout,omitempty" json:"timeout,omitempty" validate:"omitempty,min=1,max=300"`

	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	Insecure bool              `yaml:"insecure,omitempty" json:"insecure,omitempty"`
}

type ServerSpec struct {
	Listen         string   `yaml:"listen" json:"listen" validate:"required,hostname_port" template:""`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty" json:"allowed_origins,omitempty" validate:"dive,required" template:""`
}

// TracingSpec enables OTLP/HTTP span export when Endpoint is set.
type TracingSpec struct {
	Endpoint    string `yaml:"otlp_endpoint" json:"otlp_endpoint" template:""`
	Insecure    bool   `yaml:"insecure,omitempty" json:"insecure,omitempty"`
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty"`
}
