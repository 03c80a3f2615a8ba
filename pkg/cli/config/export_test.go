package config

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID, databaseID, mysqlDSN string) *Repository {
	return &Repository{
		backend:    backend,
		projectID:  projectID,
		databaseID: databaseID,
		mysqlDSN:   mysqlDSN,
	}
}

// NewAuthForTest creates an Auth config for testing purposes
func NewAuthForTest(signingKey string) *Auth {
	return &Auth{
		signingKey: signingKey,
	}
}
