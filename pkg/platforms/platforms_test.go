package platforms_test

import (
	"testing"

	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/imgfleet/convoy/pkg/platforms"
	. "github.com/onsi/gomega"
)

func TestParse(t *testing.T) {
	RegisterTestingT(t)

	// aarch64 normalizes to arm64 and collapses into the arm64/v8 entry
	set, err := platforms.Parse([]string{"linux/amd64", "linux/arm64/v8", " linux/aarch64 ", ""})
	Expect(err).NotTo(HaveOccurred())
	Expect(platforms.Strings(set)).To(Equal([]string{"linux/amd64", "linux/arm64/v8"}))

	_, err = platforms.Parse([]string{"linux/amd64/v2/bogus"})
	Expect(err).To(HaveOccurred())

	set, err = platforms.Parse(nil)
	Expect(err).NotTo(HaveOccurred())
	Expect(set).To(BeNil())
}

func TestContains(t *testing.T) {
	RegisterTestingT(t)

	supported := []v1.Platform{
		{OS: "linux", Architecture: "amd64"},
		{OS: "linux", Architecture: "amd64", Variant: "v2"},
		{OS: "linux", Architecture: "arm", Variant: "v7"},
	}

	Expect(platforms.Contains(supported, v1.Platform{OS: "linux", Architecture: "amd64"})).To(BeTrue())
	// variant-less query matches any variant
	Expect(platforms.Contains(supported, v1.Platform{OS: "linux", Architecture: "arm"})).To(BeTrue())
	Expect(platforms.Contains(supported, v1.Platform{OS: "linux", Architecture: "arm", Variant: "v6"})).To(BeFalse())
	Expect(platforms.Contains(supported, v1.Platform{OS: "linux", Architecture: "arm64"})).To(BeFalse())
}

func TestIntersect(t *testing.T) {
	RegisterTestingT(t)

	desired := []v1.Platform{
		{OS: "linux", Architecture: "amd64"},
		{OS: "linux", Architecture: "arm64"},
	}
	supported := []v1.Platform{
		{OS: "linux", Architecture: "arm64", Variant: "v8"},
		{OS: "linux", Architecture: "amd64"},
		{OS: "linux", Architecture: "386"},
	}

	got := platforms.Intersect(desired, supported)
	Expect(platforms.Format(got)).To(Equal("linux/amd64,linux/arm64"))

	// arm64 missing narrows to amd64 only
	got = platforms.Intersect(desired, supported[1:])
	Expect(platforms.Format(got)).To(Equal("linux/amd64"))
}

func TestDefault(t *testing.T) {
	RegisterTestingT(t)

	set := platforms.Default()
	Expect(set).To(HaveLen(2))
	Expect(set[0]).To(Equal(platforms.Native()))
	Expect(set[0].Architecture).NotTo(Equal(set[1].Architecture))
	for _, p := range set {
		Expect(p.OS).To(Equal("linux"))
	}
}
