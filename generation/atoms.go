// Package generation adapts external image-generation providers (OpenAI,
// Azure OpenAI) to the concept pipeline. A provider turns a resolved prompt
// into one candidate image; prompt construction, retrieval of URL-form
// results, and all persistence live elsewhere.
//
// atoms.go contains pure endpoint-classification helpers.
package generation

import (
	"strings"
)

// IsAzureEndpoint reports whether the endpoint URL is an Azure OpenAI
// endpoint. Matching is case-insensitive against the known Azure domains.
//
//	IsAzureEndpoint("https://myresource.openai.azure.com")  // true
//	IsAzureEndpoint("https://api.openai.com")               // false
func IsAzureEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "openai.azure.com") ||
		strings.Contains(lower, "cognitiveservices.azure.com")
}

// IsOpenAIEndpoint reports whether the endpoint URL is the standard OpenAI
// API endpoint.
func IsOpenAIEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	return strings.Contains(strings.ToLower(endpoint), "api.openai.com")
}

// IsLocalEndpoint reports whether the endpoint URL points at a
// local/self-hosted service. Local endpoints do not support the image
// generation API and are rejected at provider construction.
//
//	IsLocalEndpoint("http://localhost:1234")     // true
//	IsLocalEndpoint("http://192.168.1.100:5000") // true
//	IsLocalEndpoint("https://api.openai.com")    // false
func IsLocalEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "localhost") ||
		strings.Contains(lower, "127.0.0.1") ||
		strings.Contains(lower, "0.0.0.0") ||
		strings.Contains(lower, "192.168.") ||
		strings.Contains(lower, "10.")
}
