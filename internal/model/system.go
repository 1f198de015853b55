package model

// VersionInfo contains version and schema information for the application.
type VersionInfo struct {
	AppVersion       string  `json:"appVersion"`
	DbVersion        string  `json:"dbVersion"`
	MigrationNeeded  bool    `json:"migrationNeeded"`
	MigrationMessage *string `json:"migrationMessage,omitempty"`
}
