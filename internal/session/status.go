package session

type Status = string

const (
	StatusCreating = Status("Creating")
	StatusIdle     = Status("Idle")
	StatusInUse    = Status("InUse")
	StatusBroken   = Status("Broken")
	StatusClosing  = Status("Closing")
	StatusClosed   = Status("Closed")
)
