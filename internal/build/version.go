package build

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
	BuiltBy = "unknown"
)

const (
	BinaryName       = "ssoswitch"
	ConfigFolderName = ".ssoswitch"
)
