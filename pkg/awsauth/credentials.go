package awsauth

import (
	"errors"
	"os"
)

var ErrNoCredentials = errors.New("aws credentials not found in environment")

// Credentials is a static AWS credential set. Session token is optional
// and only present for temporary (STS) credentials.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// FromEnv reads credentials from the standard AWS environment
// variables, honoring a .env file if the caller loaded one beforehand.
func FromEnv() (Credentials, error) {
	c := Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
	}
	if c.AccessKeyID == "" || c.SecretAccessKey == "" {
		return Credentials{}, ErrNoCredentials
	}
	return c, nil
}

// RegionFromEnv returns the region from AWS_REGION or
// AWS_DEFAULT_REGION, empty when neither is set.
func RegionFromEnv() string {
	if r := os.Getenv("AWS_REGION"); r != "" {
		return r
	}
	return os.Getenv("AWS_DEFAULT_REGION")
}
