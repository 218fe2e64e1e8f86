/*
Package config loads a pipeline definition from YAML, the same
apiVersion/kind/metadata/spec shape used elsewhere in this codebase for
declarative resources, via gopkg.in/yaml.v3.
*/
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/arcflow/pkg/errs"
	"github.com/cuemby/arcflow/pkg/log"
	"github.com/cuemby/arcflow/pkg/window"
)

// Pipeline is the top-level document apiVersion/kind/metadata/spec
// shape expected in a pipeline YAML file.
type Pipeline struct {
	APIVersion string           `yaml:"apiVersion"`
	Kind       string           `yaml:"kind"`
	Metadata   Metadata         `yaml:"metadata"`
	Spec       PipelineSpec     `yaml:"spec"`
}

// Metadata names the pipeline.
type Metadata struct {
	Name string `yaml:"name"`
}

// PipelineSpec configures one pipeline run.
type PipelineSpec struct {
	Window     WindowSpec     `yaml:"window"`
	Manager    ManagerSpec    `yaml:"manager"`
	StateStore StateStoreSpec `yaml:"stateStore"`
	Logging    LoggingSpec    `yaml:"logging"`
}

// WindowSpec mirrors window.Config in YAML-friendly units; LengthMS
// and SlideMS are milliseconds, matching spec section 4.3's event-time
// timestamp unit.
type WindowSpec struct {
	LengthMS   uint64 `yaml:"lengthMs"`
	SlideMS    uint64 `yaml:"slideMs"`
	LatenessMS uint64 `yaml:"latenessMs"`
}

// ToWindowConfig converts a WindowSpec into a window.Config.
func (w WindowSpec) ToWindowConfig() window.Config {
	return window.Config{Length: w.LengthMS, Slide: w.SlideMS, Lateness: w.LatenessMS}
}

// ManagerSpec configures a NodeManager's parallelism bounds and
// liveness monitor.
type ManagerSpec struct {
	NodeParallelism       int    `yaml:"nodeParallelism"`
	MaxNodeParallelism    int    `yaml:"maxNodeParallelism"`
	HeartbeatTimeoutMS    uint64 `yaml:"heartbeatTimeoutMs"`
}

// HeartbeatTimeout converts HeartbeatTimeoutMS to a time.Duration.
func (m ManagerSpec) HeartbeatTimeout() time.Duration {
	return time.Duration(m.HeartbeatTimeoutMS) * time.Millisecond
}

// StateStoreSpec selects and configures a node's state.Backend.
type StateStoreSpec struct {
	// Kind is "memory" or "bolt".
	Kind        string `yaml:"kind"`
	DBPath      string `yaml:"dbPath"`
	SnapshotDir string `yaml:"snapshotDir"`
}

// LoggingSpec configures the global logger.
type LoggingSpec struct {
	Level      string `yaml:"level"`
	JSONOutput bool   `yaml:"jsonOutput"`
}

// ToLogConfig converts a LoggingSpec into a log.Config.
func (l LoggingSpec) ToLogConfig() log.Config {
	level := log.InfoLevel
	switch l.Level {
	case "debug":
		level = log.DebugLevel
	case "warn":
		level = log.WarnLevel
	case "error":
		level = log.ErrorLevel
	}
	return log.Config{Level: level, JSONOutput: l.JSONOutput}
}

// Load reads and parses a Pipeline document from path.
func Load(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IOError, "config.Load", err)
	}
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, errs.Wrap(errs.SerializationError, "config.Load", err)
	}
	if p.Spec.Manager.NodeParallelism == 0 {
		p.Spec.Manager.NodeParallelism = 1
	}
	if p.Spec.StateStore.Kind == "" {
		p.Spec.StateStore.Kind = "memory"
	}
	return &p, nil
}
