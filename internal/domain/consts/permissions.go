package consts

// Permissions for files and directories tubefetch creates.
const (
	PermsGenericDir = 0o755
	PermsVideoFile  = 0o644
	PermsLogFile    = 0o644

	PermsHomeProgDir = 0o750
	PermsDBFile      = 0o600
)
