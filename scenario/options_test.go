package scenario

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func envOf(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

var _ = Describe("Options", func() {
	It("should validate the defaults", func() {
		Expect(DefaultOptions().Validate()).To(Succeed())
	})

	It("should name the failing option", func() {
		o := DefaultOptions()
		o.TCPPort = o.UDPPort

		err := o.Validate()

		Expect(err).To(configErrorOn("tcpPort"))
		Expect(err.Error()).To(ContainSubstring("tcpPort"))
	})

	It("should override options from the environment", func() {
		o, err := DefaultOptions().FromEnv(envOf(map[string]string{
			"HYBRIDNET_NWIFI":    "4",
			"HYBRIDNET_PROTOCOL": " 2 ",
			"HYBRIDNET_DATARATE": "2Mbps",
			"HYBRIDNET_UDPPORT":  "5000",
			"HYBRIDNET_SEED":     "42",
			"HYBRIDNET_SINKSTOP": "30.5",
		}))
		Expect(err).NotTo(HaveOccurred())

		Expect(o.NWifi).To(Equal(4))
		Expect(o.Protocol).To(Equal(2))
		Expect(o.SourceDataRate).To(Equal("2Mbps"))
		Expect(o.UDPPort).To(Equal(uint16(5000)))
		Expect(o.Seed).To(Equal(uint64(42)))
		Expect(o.SinkStop).To(Equal(30.5))
		Expect(o.OutputFile).To(Equal("flow-monitor.xml"))
	})

	It("should reject malformed environment values", func() {
		_, err := DefaultOptions().FromEnv(envOf(map[string]string{
			"HYBRIDNET_NWIFI": "many",
		}))

		Expect(err).To(configErrorOn("nWifi"))
	})

	It("should read a scenario file on top of the defaults", func() {
		path := filepath.Join(GinkgoT().TempDir(), "scenario.yaml")
		Expect(os.WriteFile(path, []byte("nWifi: 8\nmobility: 1\nssid: Lab\n"), 0o644)).
			To(Succeed())

		o, err := DefaultOptions().LoadFile(path)
		Expect(err).NotTo(HaveOccurred())

		Expect(o.NWifi).To(Equal(8))
		Expect(o.Mobility).To(Equal(1))
		Expect(o.SSID).To(Equal("Lab"))
		Expect(o.WiredNodes).To(Equal(10))
	})

	It("should reject unknown keys in a scenario file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "scenario.yaml")
		Expect(os.WriteFile(path, []byte("nWiFi: 8\n"), 0o644)).To(Succeed())

		_, err := DefaultOptions().LoadFile(path)

		Expect(err).To(HaveOccurred())
	})

	It("should list the options by name", func() {
		m := DefaultOptions().Map()

		Expect(m).To(HaveKeyWithValue("nWifi", 1))
		Expect(m).To(HaveKeyWithValue("outputFile", "flow-monitor.xml"))
		Expect(m).To(HaveLen(22))
	})
})
