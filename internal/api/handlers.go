package api

import (
	"sync"
)

// Handler registry variables store the registered implementations.
// These are protected by handlerMutex for thread-safe access. Registration
// happens once during bootstrap; retrieval happens from request handlers.
var (
	instanceManagerHandler   InstanceManagerHandler
	templateManagerHandler   TemplateManagerHandler
	credentialManagerHandler CredentialManagerHandler

	handlerMutex sync.RWMutex
)

// RegisterInstanceManager registers the instance manager handler
// implementation. Only one handler can be registered at a time; subsequent
// registrations replace the previous handler.
func RegisterInstanceManager(h InstanceManagerHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	instanceManagerHandler = h
}

// GetInstanceManager returns the registered instance manager handler, or nil
// if none is registered.
func GetInstanceManager() InstanceManagerHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return instanceManagerHandler
}

// RegisterTemplateManager registers the template manager handler
// implementation.
func RegisterTemplateManager(h TemplateManagerHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	templateManagerHandler = h
}

// GetTemplateManager returns the registered template manager handler, or nil
// if none is registered.
func GetTemplateManager() TemplateManagerHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return templateManagerHandler
}

// RegisterCredentialManager registers the credential manager handler
// implementation.
func RegisterCredentialManager(h CredentialManagerHandler) {
	handlerMutex.Lock()
	defer handlerMutex.Unlock()
	credentialManagerHandler = h
}

// GetCredentialManager returns the registered credential manager handler, or
// nil if none is registered.
func GetCredentialManager() CredentialManagerHandler {
	handlerMutex.RLock()
	defer handlerMutex.RUnlock()
	return credentialManagerHandler
}
