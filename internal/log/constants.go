package log

const (
	Addr     = "addr"
	Args     = "args"
	Client   = "client"
	Clients  = "clients"
	Cmd      = "cmd"
	Code     = "code"
	Command  = "command"
	Data     = "data"
	Dir      = "dir"
	Duration = "duration"
	Error    = "error"
	Event    = "event"
	Explicit = "explicit"
	Message  = "message"
	Path     = "path"
	Pending  = "pending"
	PID      = "pid"
	Protocol = "protocol"
	Request  = "request"
	Status   = "status"
	Target   = "target"
	Type     = "type"
	Window   = "window"
)
