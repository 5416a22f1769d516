package models

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var topicPattern = regexp.MustCompile(`^[-_A-Za-z0-9]{1,64}$`)

func IsTopicValid(topic string) bool {
	return topicPattern.MatchString(topic)
}

// TopicHash is the opaque discriminator the push relay uses in place of the
// plaintext topic: hex-encoded SHA-256 of "{base}/{topic}".
func TopicHash(baseURL, topic string) string {
	return fmt.Sprintf("%x", sha256.Sum256([]byte(baseURL+"/"+topic)))
}
