package compose

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// Platform is the host operating system family, as far as compose invocation cares.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformOther   Platform = "other"
)

// DetectPlatform maps a GOOS value onto the three platform families.
func DetectPlatform(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "linux":
		return PlatformLinux
	default:
		return PlatformOther
	}
}

// HostPlatform returns the platform of the running process.
func HostPlatform() Platform {
	return DetectPlatform(runtime.GOOS)
}

// ParsePlatform accepts a platform family or a GOOS name ("darwin" maps to other).
func ParsePlatform(s string) (Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return HostPlatform(), nil
	case "windows":
		return PlatformWindows, nil
	case "linux":
		return PlatformLinux, nil
	case "other", "darwin", "freebsd", "openbsd", "netbsd":
		return PlatformOther, nil
	default:
		return "", fmt.Errorf("unknown platform %q, must be one of: linux, windows, darwin, other", s)
	}
}

// Subcommands issued to the compose tool.
const (
	SubcommandUp   = "up"
	SubcommandDown = "down"
)

// Environment variable names passed to the compose tool on start.
const (
	EnvHostServicePath     = "HOST_SERVICE_PATH"
	EnvUID                 = "UID"
	EnvGID                 = "GID"
	EnvConvertWindowsPaths = "COMPOSE_CONVERT_WINDOWS_PATHS"
)

// Files names the compose files of a topology, relative to the project directory.
type Files struct {
	Base         string
	LinuxOverlay string
}

// CommandPlan is the ordered compose invocation for one subcommand.
type CommandPlan struct {
	Tool       []string
	Files      []string
	Subcommand string
}

// Name returns the executable to spawn.
func (p CommandPlan) Name() string {
	if len(p.Tool) == 0 {
		return ""
	}
	return p.Tool[0]
}

// Args returns the arguments after the executable: tool prefix arguments, one
// "-f <file>" pair per compose file, then the subcommand.
func (p CommandPlan) Args() []string {
	args := make([]string, 0, len(p.Tool)+2*len(p.Files)+1)
	if len(p.Tool) > 1 {
		args = append(args, p.Tool[1:]...)
	}
	for _, f := range p.Files {
		args = append(args, "-f", f)
	}
	return append(args, p.Subcommand)
}

// String renders the full command line.
func (p CommandPlan) String() string {
	return strings.Join(append([]string{p.Name()}, p.Args()...), " ")
}

// BuildUpPlan selects the compose files for starting the topology. The Linux
// overlay is only included on Linux hosts.
func BuildUpPlan(tool []string, files Files, platform Platform) CommandPlan {
	plan := CommandPlan{
		Tool:       tool,
		Files:      []string{files.Base},
		Subcommand: SubcommandUp,
	}
	if platform == PlatformLinux && files.LinuxOverlay != "" {
		plan.Files = append(plan.Files, files.LinuxOverlay)
	}
	return plan
}

// BuildDownPlan is the teardown invocation: the subcommand alone, resolved by the
// compose tool against the project in the working directory.
func BuildDownPlan(tool []string) CommandPlan {
	return CommandPlan{Tool: tool, Subcommand: SubcommandDown}
}

// Identity is the numeric user and group of the host user.
type Identity struct {
	UID int
	GID int
}

// HostIdentity returns the ids of the current process. Both are -1 on Windows.
func HostIdentity() Identity {
	return Identity{UID: os.Getuid(), GID: os.Getgid()}
}

// Environment maps variable names to values for the compose process.
type Environment map[string]string

// BuildEnvironment returns the compose environment for a platform. The host path
// binding is always present; Windows gets path conversion, every other platform
// gets the numeric host ids so files written in bind mounts keep host ownership.
func BuildEnvironment(platform Platform, hostServicePath string, id Identity) Environment {
	env := Environment{
		EnvHostServicePath: hostServicePath,
	}
	if platform == PlatformWindows {
		env[EnvConvertWindowsPaths] = "1"
		return env
	}
	env[EnvUID] = strconv.Itoa(id.UID)
	env[EnvGID] = strconv.Itoa(id.GID)
	return env
}
