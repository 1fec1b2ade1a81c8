package trace

import (
	"context"
	"net"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
)

// buildResource attaches service identity plus the worker's IP to every
// span this process emits, so a collector can group fragment.cycle
// spans from a multi-host run by the machine that owned each fragment.
func buildResource(ctx context.Context, cfg *Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
	}
	if ip := hostIP(); ip != "" {
		attrs = append(attrs, semconv.HostName(ip))
	}
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, attrs...),
	)
}

// hostIP resolves the local machine's non-loopback IPv4 address,
// falling back to whatever network interface offers one when hostname
// resolution fails (common inside minimal containers with no DNS).
func hostIP() string {
	if hostname, err := os.Hostname(); err == nil {
		if addrs, err := net.LookupIP(hostname); err == nil {
			for _, addr := range addrs {
				if ipv4 := addr.To4(); ipv4 != nil && !ipv4.IsLoopback() {
					return ipv4.String()
				}
			}
		}
	}
	return firstNonLoopbackIP()
}

func firstNonLoopbackIP() string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			if ipv4 := ip.To4(); ipv4 != nil {
				return ipv4.String()
			}
		}
	}
	return ""
}
