// Package google loads the OAuth client credentials and the stored user token
// used to talk to the Gmail API.
//
// Two files are read from disk: the client credential file downloaded from
// the Google Cloud console (with either a "web" or an "installed" section)
// and the token file written by a previous authorization flow. Both are read
// once; the resulting CredentialHandle produces an authenticated *http.Client
// whose token source refreshes the access token when it expires.
package google
