package authstatevalkey

import "github.com/valkey-io/valkey-go"

// SharedClient exposes the client started in TestMain to the external test package.
func SharedClient() valkey.Client {
	return valkeyClient
}
