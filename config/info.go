package config

import (
	"strings"
	"sync"

	"github.com/tbd54566975/issuer-service/pkg/service/framework"
)

const (
	ServiceName    = "issuer-service"
	ServiceVersion = "0.1.0"
	APIVersion     = "v1"
)

var (
	si   *serviceInfo
	once sync.Once
)

// getServiceInfo provides serviceInfo as a singleton
func getServiceInfo() *serviceInfo {
	once.Do(func() {
		si = &serviceInfo{
			name: ServiceName,
			description: "The Issuer Service manages credential requests for holders, and issues signed, " +
				"holder-encrypted Verifiable Credentials from a did:web issuer identity.",
			version:      ServiceVersion,
			apiVersion:   APIVersion,
			servicePaths: make(map[framework.Type]string),
		}
	})
	return si
}

// serviceInfo is intended to be a (mostly) read-only singleton object for static service info
type serviceInfo struct {
	mu           sync.RWMutex
	name         string
	description  string
	version      string
	apiBase      string
	apiVersion   string
	servicePaths map[framework.Type]string
}

func Name() string {
	return getServiceInfo().name
}

func Description() string {
	return getServiceInfo().description
}

func Version() string {
	return getServiceInfo().version
}

func SetAPIBase(url string) {
	info := getServiceInfo()
	info.mu.Lock()
	defer info.mu.Unlock()
	info.apiBase = strings.TrimSuffix(url, "/")
}

func GetAPIBase() string {
	info := getServiceInfo()
	info.mu.RLock()
	defer info.mu.RUnlock()
	return info.apiBase
}

func SetServicePath(service framework.Type, path string) {
	info := getServiceInfo()
	info.mu.Lock()
	defer info.mu.Unlock()
	path = strings.TrimPrefix(path, "/")
	info.servicePaths[service] = strings.Join([]string{info.apiBase, info.apiVersion, path}, "/")
}

func GetServicePath(service framework.Type) string {
	info := getServiceInfo()
	info.mu.RLock()
	defer info.mu.RUnlock()
	return info.servicePaths[service]
}
