package config

// Bundlerfile represents the structure of the bundler.yaml configuration file.
type Bundlerfile struct {
	Version     string                `yaml:"version"`
	Root        string                `yaml:"root"`
	OutDir      string                `yaml:"outdir"`
	ServeDir    string                `yaml:"servedir"`
	Target      string                `yaml:"target"`
	EntryPoints []string              `yaml:"entryPoints"`
	Bundles     []BundleDTO           `yaml:"bundles"`
	External    []string              `yaml:"external"`
	Loaders     map[string]string     `yaml:"loaders"`
	Pipelines   []PipelineDTO         `yaml:"pipelines"`
	Commands    map[string]CommandDTO `yaml:"commands"`
	Define      map[string]string     `yaml:"define"`
	Concurrency int                   `yaml:"concurrency"`
}

// BundleDTO represents a named multi-entry target.
type BundleDTO struct {
	Name      string   `yaml:"name"`
	Entries   []string `yaml:"entries"`
	DependsOn []string `yaml:"dependsOn"`
}

// PipelineDTO maps a file name pattern to transform names.
type PipelineDTO struct {
	Pattern    string   `yaml:"pattern"`
	Transforms []string `yaml:"transforms"`
}

// CommandDTO represents an external command transform.
type CommandDTO struct {
	Run    []string          `yaml:"run"`
	Loader string            `yaml:"loader"`
	Env    map[string]string `yaml:"env"`
}
