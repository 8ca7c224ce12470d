package domain

// Command is a single external process invocation.
type Command struct {
	// Name identifies the command in logs.
	Name string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Args is the argv, Args[0] being the program.
	Args []string
	// Env holds extra KEY=VALUE pairs layered over the inherited environment.
	Env []string
}
