/*
Package authsdk is the Go client of the warden authorization server.

An SDKClient is bound to one tenant and one OAuth2 client. It calls the token,
revocation and introspection endpoints and creates sessions:

	client := authsdk.NewSDKClient("https://auth.example.com", "acme", "web", "secret")

	session, challenge, err := client.AuthenticateWithPassword(ctx, "alice", "pw", nil)
	if err != nil {
		return err
	}
	if challenge != nil {
		// The user has two factor authentication enabled; a code was sent
		// over challenge.Channel.
		session, err = client.CompleteTfa(ctx, *challenge, code)
	}

A Session keeps the access token fresh. User sessions use their refresh
token, client sessions created with AuthenticateWithClientCredentials request
a new token. Sessions of administrators manage roles and permissions:

	roles, err := session.ListRoles(ctx)

Server errors are returned as *OAuth2Error and match the predefined errors
by code:

	if errors.Is(err, authsdk.ErrInvalidGrant) {
		// wrong credentials
	}
*/
package authsdk
