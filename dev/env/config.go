package devenv

// DamadamTestConfig is read from dev/.state/damadam_config.json5 by the tests
// that talk to the live site.
type DamadamTestConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
	// a nickname that is known to exist
	Nickname string `json:"nickname"`
}
