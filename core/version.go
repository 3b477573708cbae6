package core

// Version is the runtime core version, MAJOR.MINOR.PATCH.
const Version = "0.1.0"
