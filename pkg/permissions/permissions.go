// Package permissions defines the publisher-authored permissions document:
// filesystem read/write path lists, network policy, exec policy, and agent
// capability flags. The document is authored once and never mutated after
// signing; only its canonicalized hash is bound into the attestation.
package permissions

// NetworkPolicy is either "none", "all", or an explicit domain allow-list
// represented by the Domains field.
type NetworkPolicy struct {
	Mode    string   `json:"mode"` // "none" | "all" | "domains"
	Domains []string `json:"domains,omitempty"`
}

// ExecPolicy is either a boolean allow/deny or an explicit allowed-command
// list.
type ExecPolicy struct {
	Allowed  bool     `json:"allowed"`
	Commands []string `json:"commands,omitempty"`
}

// AgentCapabilities declares the four capability flags a skill may request
// from the hosting agent runtime.
type AgentCapabilities struct {
	MemoryRead         bool `json:"memory_read"`
	MemoryWrite        bool `json:"memory_write"`
	SpawnAgents        bool `json:"spawn_agents"`
	ModifySystemPrompt bool `json:"modify_system_prompt"`
}

// Document is the full permissions manifest declared by a skill's
// publisher.
type Document struct {
	SchemaVersion     string            `json:"schema_version"`
	FilesystemRead    []string          `json:"filesystem_read"`
	FilesystemWrite   []string          `json:"filesystem_write"`
	Network           NetworkPolicy     `json:"network"`
	Exec              ExecPolicy        `json:"exec"`
	AgentCapabilities AgentCapabilities `json:"agent_capabilities"`
}
