package common

const (
	KEY_EXCLUSION_SNAPSHOT = "exclusion_snapshot:%s"
	KEY_JOB_EXECUTION      = "job_execution:%s"
)

const (
	STORAGE_FILE     = "file"
	STORAGE_POSTGRES = "postgres"
)

func GetStorageBackends() []string {
	return []string{
		STORAGE_FILE,
		STORAGE_POSTGRES,
	}
}
