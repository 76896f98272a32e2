// Package classifier implements the dataplane packet classifier (spec.md
// §4.1): a pure function over a borrowed packet handle that reads the
// Ethernet/IPv4/TCP headers by hand and returns a forwarding verdict.
// Grounded on original_source/src/modules/classifier/classifier.cpp's
// header-walking order, translated from rte_mbuf field access to a plain
// byte-slice read.
package classifier

import (
	"sync/atomic"

	"go.uber.org/zap"

	"aero-gateway/internal/dataplane/pktpool"
)

// Verdict is the classifier's forwarding decision for one packet.
type Verdict uint8

const (
	// Fast marks a packet for duplication onto the HFT ring in addition
	// to the unconditional kernel path.
	Fast Verdict = iota
	// Slow marks a packet for the kernel path only.
	Slow
	// Drop is never produced by this release's rules but is part of the
	// verdict sum for forward compatibility with future classification.
	Drop
)

func (v Verdict) String() string {
	switch v {
	case Fast:
		return "fast"
	case Drop:
		return "drop"
	default:
		return "slow"
	}
}

const (
	etherTypeIPv4 = 0x0800
	etherHdrLen   = 14

	ipProtoTCP = 6
	ipProtoUDP = 17

	okxPort   = 8443
	bybitPort = 443
)

// fastPorts is the fixed target-port set for this release: OKX's TLS
// port and Bybit's HTTPS/WSS port.
var fastPorts = map[uint16]bool{
	okxPort:   true,
	bybitPort: true,
}

// maxDebugTraceLines caps how many per-packet trace lines a Tracer emits,
// mirroring the original's static debug_count guard.
const maxDebugTraceLines = 50

// Tracer optionally logs a bounded number of per-packet classification
// decisions when debug logging is enabled, grounded on the original
// classifier's debug_log_enabled-gated printf calls.
type Tracer struct {
	logger *zap.Logger
	count  int32
}

// NewTracer returns nil if logger is nil, so callers can pass a possibly
// absent tracer straight into Classify without a nil check at call sites.
func NewTracer(logger *zap.Logger) *Tracer {
	if logger == nil {
		return nil
	}
	return &Tracer{logger: logger.Named("classifier")}
}

func (t *Tracer) trace(verdict Verdict, etherType uint16, protocol uint8, srcPort, dstPort uint16) {
	if t == nil {
		return
	}
	if atomic.AddInt32(&t.count, 1) > maxDebugTraceLines {
		return
	}
	t.logger.Debug("classified packet",
		zap.String("verdict", verdict.String()),
		zap.Uint16("ether_type", etherType),
		zap.Uint8("protocol", protocol),
		zap.Uint16("src_port", srcPort),
		zap.Uint16("dst_port", dstPort),
	)
}

// Classify reads h's Ethernet/IPv4/TCP headers and returns a verdict.
// Malformed or truncated packets (header bounds fail) return Slow; they
// are never dropped silently, since kernel diagnostic flows must stay
// visible to the host. tracer may be nil.
func Classify(h *pktpool.Handle, tracer *Tracer) Verdict {
	data := h.Data[:h.Length]

	if len(data) < etherHdrLen {
		tracer.trace(Slow, 0, 0, 0, 0)
		return Slow
	}
	etherType := uint16(data[12])<<8 | uint16(data[13])
	if etherType != etherTypeIPv4 {
		tracer.trace(Slow, etherType, 0, 0, 0)
		return Slow
	}

	ipHdr := data[etherHdrLen:]
	if len(ipHdr) < 20 {
		tracer.trace(Slow, etherType, 0, 0, 0)
		return Slow
	}

	ihl := int(ipHdr[0] & 0x0f)
	ipHdrLen := ihl * 4
	if ihl < 5 || len(ipHdr) < ipHdrLen {
		tracer.trace(Slow, etherType, 0, 0, 0)
		return Slow
	}

	protocol := ipHdr[9]
	if protocol == ipProtoUDP {
		tracer.trace(Slow, etherType, protocol, 0, 0)
		return Slow
	}
	if protocol != ipProtoTCP {
		tracer.trace(Slow, etherType, protocol, 0, 0)
		return Slow
	}

	tcpHdr := ipHdr[ipHdrLen:]
	if len(tcpHdr) < 4 {
		tracer.trace(Slow, etherType, protocol, 0, 0)
		return Slow
	}
	srcPort := uint16(tcpHdr[0])<<8 | uint16(tcpHdr[1])
	dstPort := uint16(tcpHdr[2])<<8 | uint16(tcpHdr[3])

	if fastPorts[srcPort] || fastPorts[dstPort] {
		tracer.trace(Fast, etherType, protocol, srcPort, dstPort)
		return Fast
	}
	tracer.trace(Slow, etherType, protocol, srcPort, dstPort)
	return Slow
}
