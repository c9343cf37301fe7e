package lookup

import (
	"context"
	"fmt"
	"net"
)

// MaxCIDRHosts is the hard cap on expanded host addresses, per spec.md §4.5.
const MaxCIDRHosts = 256

// CountCIDRHosts reports how many host addresses block would expand to,
// without running any lookups - used by the server to rate-limit before
// doing the (potentially expensive) expansion-and-fetch.
func CountCIDRHosts(block string) (int, error) {
	hosts, err := expandCIDR(block)
	if err != nil {
		return 0, err
	}
	return len(hosts), nil
}

// CIDR expands block into its host addresses (ascending order, network and
// broadcast addresses excluded for IPv4 blocks of /30 or shorter), validates
// each host, and unions the validation errors into the results as
// {ip, success=false, error} rather than rejecting the whole request -
// unlike Bulk, a CIDR expansion routinely contains private/reserved
// addresses and spec.md §4.5 calls for embedding those failures, not
// failing the batch. Bulk lookup then runs on whatever hosts validated.
func (s *Service) CIDR(ctx context.Context, block string, forceRefresh, includeLLMAnalysis bool) (*BulkResult, error) {
	hosts, err := expandCIDR(block)
	if err != nil {
		return nil, err
	}
	if len(hosts) > MaxCIDRHosts {
		return nil, newValidationError("CIDR_TOO_LARGE", fmt.Sprintf("block expands to %d addresses, exceeding the %d host limit", len(hosts), MaxCIDRHosts), "use a smaller prefix (e.g. /24 or narrower for IPv4)")
	}

	results := make([]Result, len(hosts))
	var validIdx []int
	var validIPs []string
	for i, host := range hosts {
		if ip, verr := normalizeIP(host); verr != nil {
			results[i] = Result{IP: host, Success: false, Error: verr.Error()}
		} else {
			validIdx = append(validIdx, i)
			validIPs = append(validIPs, ip)
		}
	}

	if len(validIPs) > 0 {
		sub := s.runBatch(ctx, validIPs, forceRefresh, includeLLMAnalysis)
		for i, idx := range validIdx {
			results[idx] = sub.Results[i]
		}
	}

	summary := BulkSummary{Total: len(results)}
	for _, r := range results {
		if r.Success {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return &BulkResult{Results: results, Summary: summary}, nil
}

// expandCIDR returns every host address in block in deterministic ascending
// order. Network/broadcast addresses are dropped for IPv4 prefixes that
// contain more than two addresses, matching conventional "usable host"
// semantics; /31 and /32 blocks are returned as-is.
func expandCIDR(block string) ([]string, error) {
	ip, ipNet, err := net.ParseCIDR(block)
	if err != nil {
		return nil, newValidationError("INVALID_CIDR", "input is not a valid CIDR block", "provide a CIDR block such as 203.0.113.0/24")
	}
	ones, bits := ipNet.Mask.Size()
	isV4 := ip.To4() != nil

	var addrs []string
	current := cloneIP(ipNet.IP)
	for ipNet.Contains(current) {
		addrs = append(addrs, current.String())
		current = nextIP(current)
		if len(addrs) > MaxCIDRHosts+2 {
			break // safety valve; the real limit check happens in CIDR
		}
	}

	if isV4 && bits-ones > 1 && len(addrs) > 2 {
		addrs = addrs[1 : len(addrs)-1]
	}
	return addrs, nil
}

func cloneIP(ip net.IP) net.IP {
	dup := make(net.IP, len(ip))
	copy(dup, ip)
	return dup
}

func nextIP(ip net.IP) net.IP {
	dup := cloneIP(ip)
	for i := len(dup) - 1; i >= 0; i-- {
		dup[i]++
		if dup[i] != 0 {
			break
		}
	}
	return dup
}
