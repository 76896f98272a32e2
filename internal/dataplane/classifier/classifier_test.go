package classifier

import (
	"encoding/binary"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"aero-gateway/internal/dataplane/pktpool"
)

// buildFrame assembles a minimal Ethernet/IPv4/[TCP|UDP] frame for tests.
// payloadLen bytes of zero payload follow the transport header.
func buildFrame(etherType uint16, protocol byte, srcPort, dstPort uint16, payloadLen int) []byte {
	frame := make([]byte, etherHdrLen+20+4+payloadLen)
	binary.BigEndian.PutUint16(frame[12:14], etherType)

	ipHdr := frame[etherHdrLen:]
	ipHdr[0] = 0x45 // version 4, IHL 5
	ipHdr[9] = protocol

	if protocol == ipProtoTCP || protocol == ipProtoUDP {
		tcpHdr := ipHdr[20:]
		binary.BigEndian.PutUint16(tcpHdr[0:2], srcPort)
		binary.BigEndian.PutUint16(tcpHdr[2:4], dstPort)
	}
	return frame
}

func handleFor(data []byte) *pktpool.Handle {
	p := pktpool.New(1, len(data)+1)
	h, _ := p.Alloc()
	copy(h.Data, data)
	h.Length = len(data)
	return h
}

func TestClassify_TCPDestPort8443IsFast(t *testing.T) {
	frame := buildFrame(etherTypeIPv4, ipProtoTCP, 51000, okxPort, 100)
	v := Classify(handleFor(frame), nil)
	if v != Fast {
		t.Errorf("verdict = %v, want Fast", v)
	}
}

func TestClassify_TCPSrcPort443IsFast(t *testing.T) {
	frame := buildFrame(etherTypeIPv4, ipProtoTCP, bybitPort, 51001, 100)
	v := Classify(handleFor(frame), nil)
	if v != Fast {
		t.Errorf("verdict = %v, want Fast", v)
	}
}

func TestClassify_NonIPv4IsSlow(t *testing.T) {
	frame := buildFrame(0x0806, ipProtoTCP, 0, 0, 0) // ARP ethertype
	v := Classify(handleFor(frame), nil)
	if v != Slow {
		t.Errorf("verdict = %v, want Slow", v)
	}
}

func TestClassify_IPv4UDPIsSlow(t *testing.T) {
	frame := buildFrame(etherTypeIPv4, ipProtoUDP, 8443, 9999, 10)
	v := Classify(handleFor(frame), nil)
	if v != Slow {
		t.Errorf("verdict = %v, want Slow", v)
	}
}

func TestClassify_TCPNonTargetPortsIsSlow(t *testing.T) {
	frame := buildFrame(etherTypeIPv4, ipProtoTCP, 51000, 80, 10)
	v := Classify(handleFor(frame), nil)
	if v != Slow {
		t.Errorf("verdict = %v, want Slow", v)
	}
}

func TestClassify_TruncatedEthernetHeaderIsSlow(t *testing.T) {
	h := handleFor(make([]byte, 5))
	v := Classify(h, nil)
	if v != Slow {
		t.Errorf("verdict = %v, want Slow", v)
	}
}

func TestClassify_TruncatedIPHeaderIsSlow(t *testing.T) {
	frame := buildFrame(etherTypeIPv4, ipProtoTCP, 1, 2, 0)
	h := handleFor(frame[:etherHdrLen+10])
	v := Classify(h, nil)
	if v != Slow {
		t.Errorf("verdict = %v, want Slow", v)
	}
}

// TestClassify_TargetPortAlwaysFast mirrors spec.md §8's quantified
// invariant: any valid TCP packet with either port in {8443, 443} is
// always classified Fast, regardless of the other port or payload size.
func TestClassify_TargetPortAlwaysFast(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	targetPorts := []uint16{8443, 443}

	properties.Property("TCP packet touching a target port classifies Fast", prop.ForAll(
		func(otherPort uint16, useSrc bool, targetIdx int, payloadLen int) bool {
			target := targetPorts[targetIdx%len(targetPorts)]
			var src, dst uint16
			if useSrc {
				src, dst = target, otherPort
			} else {
				src, dst = otherPort, target
			}
			frame := buildFrame(etherTypeIPv4, ipProtoTCP, src, dst, payloadLen%64)
			return Classify(handleFor(frame), nil) == Fast
		},
		gen.UInt16(),
		gen.Bool(),
		gen.IntRange(0, 1),
		gen.IntRange(0, 64),
	))

	properties.TestingRun(t)
}

func TestClassify_NilLoggerTracerLeavesVerdictUnchanged(t *testing.T) {
	// A nil-logger tracer must behave identically to a nil tracer: no
	// panics, verdicts unaffected.
	tr := NewTracer(nil)
	if tr != nil {
		t.Fatal("NewTracer(nil) must return nil")
	}
	frame := buildFrame(etherTypeIPv4, ipProtoTCP, 1, okxPort, 10)
	if v := Classify(handleFor(frame), tr); v != Fast {
		t.Errorf("verdict = %v, want Fast", v)
	}
}
