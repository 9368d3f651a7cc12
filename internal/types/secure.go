package types

// redactedPlaceholder replaces secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString holds a credential that must never appear in logs or API
// output: the OpenWeather API key, the Postgres DSN, and the admin key all
// flow through configuration as this type. String() and MarshalJSON() return
// a redacted placeholder so a config dump or a request log cannot leak them.
//
// Unmask() retrieves the plaintext where it is genuinely needed: the `appid`
// query parameter on upstream requests, the pgx pool connection string, and
// the admin middleware's constant-time comparison.
type SecretString string

// String returns a redacted placeholder instead of the raw value. Invoked by
// fmt verbs and slog through the fmt.Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string, keeping
// secrets out of serialized config and structured log entries.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Call sites should be
// the few places that hand the credential to its consumer, nothing else.
func (s SecretString) Unmask() string {
	return string(s)
}
