package flowmon

import (
	"bufio"
	"encoding/xml"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/sarchlab/hybridnet/packet"
	"github.com/sarchlab/hybridnet/sim"
)

// XMLOptions selects the optional sections of the XML document.
type XMLOptions struct {
	Histograms bool
	Probes     bool
}

// nsTime is a time written as "+<nanoseconds>ns".
type nsTime sim.VTimeInSec

func (t nsTime) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	return xml.Attr{
		Name:  name,
		Value: fmt.Sprintf("+%.1fns", sim.VTimeInSec(t).Nanoseconds()),
	}, nil
}

func (t *nsTime) UnmarshalXMLAttr(attr xml.Attr) error {
	v, err := ParseNanoseconds(attr.Value)
	if err != nil {
		return err
	}

	*t = nsTime(v)

	return nil
}

// ParseNanoseconds parses a time written as "+<nanoseconds>ns".
func ParseNanoseconds(s string) (sim.VTimeInSec, error) {
	str := strings.TrimSuffix(strings.TrimPrefix(strings.TrimSpace(s), "+"), "ns")

	ns, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: %w", s, err)
	}

	return sim.VTimeInSec(ns / 1e9), nil
}

type xmlDocument struct {
	XMLName    xml.Name       `xml:"FlowMonitor"`
	FlowStats  xmlFlowStats   `xml:"FlowStats"`
	Classifier xmlClassifier  `xml:"Ipv4FlowClassifier"`
	Probes     *xmlFlowProbes `xml:"FlowProbes,omitempty"`
}

type xmlFlowStats struct {
	Flows []xmlFlow `xml:"Flow"`
}

type xmlFlow struct {
	FlowID            FlowID `xml:"flowId,attr"`
	TimeFirstTxPacket nsTime `xml:"timeFirstTxPacket,attr"`
	TimeFirstRxPacket nsTime `xml:"timeFirstRxPacket,attr"`
	TimeLastTxPacket  nsTime `xml:"timeLastTxPacket,attr"`
	TimeLastRxPacket  nsTime `xml:"timeLastRxPacket,attr"`
	DelaySum          nsTime `xml:"delaySum,attr"`
	JitterSum         nsTime `xml:"jitterSum,attr"`
	LastDelay         nsTime `xml:"lastDelay,attr"`
	TxBytes           uint64 `xml:"txBytes,attr"`
	RxBytes           uint64 `xml:"rxBytes,attr"`
	TxPackets         uint32 `xml:"txPackets,attr"`
	RxPackets         uint32 `xml:"rxPackets,attr"`
	LostPackets       uint32 `xml:"lostPackets,attr"`
	TimesForwarded    uint32 `xml:"timesForwarded,attr"`

	PacketsDropped []xmlPacketsDropped `xml:"packetsDropped"`
	BytesDropped   []xmlBytesDropped   `xml:"bytesDropped"`

	DelayHistogram             *xmlHistogram `xml:"delayHistogram,omitempty"`
	JitterHistogram            *xmlHistogram `xml:"jitterHistogram,omitempty"`
	PacketSizeHistogram        *xmlHistogram `xml:"packetSizeHistogram,omitempty"`
	FlowInterruptionsHistogram *xmlHistogram `xml:"flowInterruptionsHistogram,omitempty"`
}

type xmlPacketsDropped struct {
	ReasonCode int    `xml:"reasonCode,attr"`
	Number     uint32 `xml:"number,attr"`
}

type xmlBytesDropped struct {
	ReasonCode int    `xml:"reasonCode,attr"`
	Bytes      uint64 `xml:"bytes,attr"`
}

type xmlHistogram struct {
	NBins int      `xml:"nBins,attr"`
	Bins  []xmlBin `xml:"bin"`
}

type xmlBin struct {
	Index int     `xml:"index,attr"`
	Start float64 `xml:"start,attr"`
	Width float64 `xml:"width,attr"`
	Count uint32  `xml:"count,attr"`
}

type xmlClassifier struct {
	Flows []xmlClassifierFlow `xml:"Flow"`
}

type xmlClassifierFlow struct {
	FlowID             FlowID  `xml:"flowId,attr"`
	SourceAddress      string  `xml:"sourceAddress,attr"`
	DestinationAddress string  `xml:"destinationAddress,attr"`
	Protocol           uint8   `xml:"protocol,attr"`
	SourcePort         uint16  `xml:"sourcePort,attr"`
	DestinationPort    uint16  `xml:"destinationPort,attr"`
	Dscp               xmlDscp `xml:"Dscp"`
}

type xmlDscp struct {
	Value   string `xml:"value,attr"`
	Packets uint32 `xml:"packets,attr"`
}

type xmlFlowProbes struct {
	Probes []xmlFlowProbe `xml:"FlowProbe"`
}

type xmlFlowProbe struct {
	Index int                 `xml:"index,attr"`
	Stats []xmlProbeFlowStats `xml:"FlowStats"`
}

type xmlProbeFlowStats struct {
	FlowID                 FlowID              `xml:"flowId,attr"`
	Packets                uint32              `xml:"packets,attr"`
	Bytes                  uint64              `xml:"bytes,attr"`
	DelayFromFirstProbeSum nsTime              `xml:"delayFromFirstProbeSum,attr"`
	PacketsDropped         []xmlPacketsDropped `xml:"packetsDropped"`
	BytesDropped           []xmlBytesDropped   `xml:"bytesDropped"`
}

func histogramToXML(h Histogram) *xmlHistogram {
	x := &xmlHistogram{NBins: h.NumBins()}

	for i, c := range h.Counts {
		if c == 0 {
			continue
		}

		x.Bins = append(x.Bins, xmlBin{
			Index: i,
			Start: h.BinStart(i),
			Width: h.BinWidth,
			Count: c,
		})
	}

	return x
}

func histogramFromXML(x *xmlHistogram, defaultWidth float64) Histogram {
	h := NewHistogram(defaultWidth)
	if x == nil {
		return h
	}

	if x.NBins > 0 {
		h.Counts = make([]uint32, x.NBins)
	}

	for _, b := range x.Bins {
		if b.Width > 0 {
			h.BinWidth = b.Width
		}

		for len(h.Counts) <= b.Index {
			h.Counts = append(h.Counts, 0)
		}

		h.Counts[b.Index] = b.Count
	}

	return h
}

func dropsToXML(packets []uint32, bytes []uint64) (
	[]xmlPacketsDropped,
	[]xmlBytesDropped,
) {
	var (
		xp []xmlPacketsDropped
		xb []xmlBytesDropped
	)

	for reason, n := range packets {
		xp = append(xp, xmlPacketsDropped{ReasonCode: reason, Number: n})
	}

	for reason, n := range bytes {
		xb = append(xb, xmlBytesDropped{ReasonCode: reason, Bytes: n})
	}

	return xp, xb
}

func dropsFromXML(xp []xmlPacketsDropped, xb []xmlBytesDropped) (
	[]uint32,
	[]uint64,
) {
	var (
		packets []uint32
		bytes   []uint64
	)

	for _, p := range xp {
		for len(packets) <= p.ReasonCode {
			packets = append(packets, 0)
		}
		packets[p.ReasonCode] = p.Number
	}

	for _, b := range xb {
		for len(bytes) <= b.ReasonCode {
			bytes = append(bytes, 0)
		}
		bytes[b.ReasonCode] = b.Bytes
	}

	return packets, bytes
}

func toXML(s *Statistics, opts XMLOptions) *xmlDocument {
	doc := &xmlDocument{}

	for _, f := range s.Flows {
		st := f.Stats
		xf := xmlFlow{
			FlowID:            f.ID,
			TimeFirstTxPacket: nsTime(st.TimeFirstTxPacket),
			TimeFirstRxPacket: nsTime(st.TimeFirstRxPacket),
			TimeLastTxPacket:  nsTime(st.TimeLastTxPacket),
			TimeLastRxPacket:  nsTime(st.TimeLastRxPacket),
			DelaySum:          nsTime(st.DelaySum),
			JitterSum:         nsTime(st.JitterSum),
			LastDelay:         nsTime(st.LastDelay),
			TxBytes:           st.TxBytes,
			RxBytes:           st.RxBytes,
			TxPackets:         st.TxPackets,
			RxPackets:         st.RxPackets,
			LostPackets:       st.LostPackets,
			TimesForwarded:    st.TimesForwarded,
		}
		xf.PacketsDropped, xf.BytesDropped = dropsToXML(st.PacketsDropped, st.BytesDropped)

		if opts.Histograms {
			xf.DelayHistogram = histogramToXML(st.DelayHistogram)
			xf.JitterHistogram = histogramToXML(st.JitterHistogram)
			xf.PacketSizeHistogram = histogramToXML(st.PacketSizeHistogram)
			xf.FlowInterruptionsHistogram = histogramToXML(st.FlowInterruptionsHistogram)
		}

		doc.FlowStats.Flows = append(doc.FlowStats.Flows, xf)

		doc.Classifier.Flows = append(doc.Classifier.Flows, xmlClassifierFlow{
			FlowID:             f.ID,
			SourceAddress:      f.Tuple.Src.String(),
			DestinationAddress: f.Tuple.Dst.String(),
			Protocol:           uint8(f.Tuple.Protocol),
			SourcePort:         f.Tuple.SrcPort,
			DestinationPort:    f.Tuple.DstPort,
			Dscp:               xmlDscp{Value: "0x0", Packets: st.TxPackets},
		})
	}

	if opts.Probes {
		doc.Probes = &xmlFlowProbes{}

		for _, p := range s.Probes {
			xp := xmlFlowProbe{Index: p.Index}

			for _, ps := range p.Flows {
				xs := xmlProbeFlowStats{
					FlowID:                 ps.FlowID,
					Packets:                ps.Packets,
					Bytes:                  ps.Bytes,
					DelayFromFirstProbeSum: nsTime(ps.DelayFromFirstProbeSum),
				}
				xs.PacketsDropped, xs.BytesDropped = dropsToXML(ps.PacketsDropped, ps.BytesDropped)
				xp.Stats = append(xp.Stats, xs)
			}

			doc.Probes.Probes = append(doc.Probes.Probes, xp)
		}
	}

	return doc
}

func fromXML(doc *xmlDocument) (*Statistics, error) {
	tuples := make(map[FlowID]packet.FiveTuple, len(doc.Classifier.Flows))

	for _, c := range doc.Classifier.Flows {
		src, err := netip.ParseAddr(c.SourceAddress)
		if err != nil {
			return nil, fmt.Errorf("flow %d: %w", c.FlowID, err)
		}

		dst, err := netip.ParseAddr(c.DestinationAddress)
		if err != nil {
			return nil, fmt.Errorf("flow %d: %w", c.FlowID, err)
		}

		tuples[c.FlowID] = packet.FiveTuple{
			Src:      src,
			Dst:      dst,
			Protocol: packet.Protocol(c.Protocol),
			SrcPort:  c.SourcePort,
			DstPort:  c.DestinationPort,
		}
	}

	s := &Statistics{}

	for _, xf := range doc.FlowStats.Flows {
		st := FlowStats{
			TimeFirstTxPacket: sim.VTimeInSec(xf.TimeFirstTxPacket),
			TimeFirstRxPacket: sim.VTimeInSec(xf.TimeFirstRxPacket),
			TimeLastTxPacket:  sim.VTimeInSec(xf.TimeLastTxPacket),
			TimeLastRxPacket:  sim.VTimeInSec(xf.TimeLastRxPacket),
			DelaySum:          sim.VTimeInSec(xf.DelaySum),
			JitterSum:         sim.VTimeInSec(xf.JitterSum),
			LastDelay:         sim.VTimeInSec(xf.LastDelay),
			TxBytes:           xf.TxBytes,
			RxBytes:           xf.RxBytes,
			TxPackets:         xf.TxPackets,
			RxPackets:         xf.RxPackets,
			LostPackets:       xf.LostPackets,
			TimesForwarded:    xf.TimesForwarded,

			DelayHistogram:             histogramFromXML(xf.DelayHistogram, DefaultDelayBinWidth),
			JitterHistogram:            histogramFromXML(xf.JitterHistogram, DefaultJitterBinWidth),
			PacketSizeHistogram:        histogramFromXML(xf.PacketSizeHistogram, DefaultPacketSizeBinWidth),
			FlowInterruptionsHistogram: histogramFromXML(xf.FlowInterruptionsHistogram, DefaultFlowInterruptionsBinWidth),
		}
		st.PacketsDropped, st.BytesDropped = dropsFromXML(xf.PacketsDropped, xf.BytesDropped)

		s.Flows = append(s.Flows, Flow{
			ID:    xf.FlowID,
			Tuple: tuples[xf.FlowID],
			Stats: st,
		})
	}

	if doc.Probes != nil {
		for _, xp := range doc.Probes.Probes {
			p := Probe{Index: xp.Index}

			for _, xs := range xp.Stats {
				ps := ProbeFlowStats{
					FlowID:                 xs.FlowID,
					Packets:                xs.Packets,
					Bytes:                  xs.Bytes,
					DelayFromFirstProbeSum: sim.VTimeInSec(xs.DelayFromFirstProbeSum),
				}
				ps.PacketsDropped, ps.BytesDropped = dropsFromXML(xs.PacketsDropped, xs.BytesDropped)
				p.Flows = append(p.Flows, ps)
			}

			s.Probes = append(s.Probes, p)
		}
	}

	return s, nil
}

// WriteXML serializes the statistics as a FlowMonitor XML document.
func WriteXML(w io.Writer, s *Statistics, opts XMLOptions) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")

	if err := enc.Encode(toXML(s, opts)); err != nil {
		return fmt.Errorf("encoding flow statistics: %w", err)
	}

	if err := enc.Close(); err != nil {
		return err
	}

	_, err := io.WriteString(w, "\n")

	return err
}

// WriteXMLFile writes the statistics to a file, replacing it if it exists.
func WriteXMLFile(path string, s *Statistics, opts XMLOptions) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	bw := bufio.NewWriter(f)

	if err = WriteXML(bw, s, opts); err != nil {
		return err
	}

	return bw.Flush()
}

// ReadXML parses a FlowMonitor XML document.
func ReadXML(r io.Reader) (*Statistics, error) {
	doc := &xmlDocument{}

	if err := xml.NewDecoder(r).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding flow statistics: %w", err)
	}

	return fromXML(doc)
}

// ReadXMLFile parses a FlowMonitor XML file.
func ReadXMLFile(path string) (*Statistics, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	s, err := ReadXML(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}
