// Package google provides OAuth2 credential handling for the Google APIs
// consumed by the bot. It produces ready-to-use token sources from an
// offline refresh token, the credential shape used for serverless
// deployments where no interactive flow is possible.
package google
