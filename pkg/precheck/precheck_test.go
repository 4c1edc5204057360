package precheck_test

import (
	"testing"

	"github.com/imgfleet/convoy/pkg/precheck"
	schemav1 "github.com/imgfleet/convoy/pkg/schema/v1"
	. "github.com/onsi/gomega"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func setup(t *testing.T) afero.Fs {
	logger := zaptest.NewLogger(t)
	undo := zap.ReplaceGlobals(logger)
	t.Cleanup(func() {
		undo()
		logger.Sync()
	})
	orig := precheck.Fs
	precheck.Fs = afero.NewMemMapFs()
	t.Cleanup(func() { precheck.Fs = orig })
	return precheck.Fs
}

func TestContext(t *testing.T) {
	RegisterTestingT(t)
	fs := setup(t)

	afero.WriteFile(fs, "ctx/Dockerfile", []byte("FROM scratch\n"), 0644)
	afero.WriteFile(fs, "ctx/app/main.py", make([]byte, 100), 0644)
	afero.WriteFile(fs, "ctx/app/__pycache__/main.cpython-311.pyc", make([]byte, 50), 0644)
	afero.WriteFile(fs, "ctx/.git/objects/blob", make([]byte, 1000), 0644)
	afero.WriteFile(fs, "ctx/.dockerignore", []byte("# build junk\n.git\n**/__pycache__\n\n"), 0644)

	result, err := precheck.Context(schemav1.ConvoyConfig{Context: "ctx"})
	Expect(err).NotTo(HaveOccurred())
	Expect(result.Ignored).To(Equal(2))
	// Dockerfile, main.py and .dockerignore itself remain
	Expect(result.Files).To(Equal(3))
	Expect(result.Bytes).To(BeNumerically(">", 100))
}

func TestContextMissingInputs(t *testing.T) {
	RegisterTestingT(t)
	fs := setup(t)

	_, err := precheck.Context(schemav1.ConvoyConfig{Context: "nope"})
	Expect(err).To(MatchError(ContainSubstring("not found or not a directory")))

	afero.WriteFile(fs, "ctx/app.py", []byte("x"), 0644)
	_, err = precheck.Context(schemav1.ConvoyConfig{Context: "ctx"})
	Expect(err).To(MatchError(ContainSubstring(`dockerfile "ctx/Dockerfile" not found`)))
}

func TestContextDockerfileInContext(t *testing.T) {
	RegisterTestingT(t)
	fs := setup(t)

	// convoy build app/ with the Dockerfile inside the context directory,
	// the layout buildx's own PATH/Dockerfile default serves
	afero.WriteFile(fs, "app/Dockerfile", []byte("FROM scratch\n"), 0644)
	afero.WriteFile(fs, "app/main.py", make([]byte, 10), 0644)

	result, err := precheck.Context(schemav1.ConvoyConfig{Context: "app"})
	Expect(err).NotTo(HaveOccurred())
	Expect(result.Files).To(Equal(2))

	// an explicit dockerfile is relative to the context too
	afero.WriteFile(fs, "app/build/Dockerfile.ci", []byte("FROM scratch\n"), 0644)
	_, err = precheck.Context(schemav1.ConvoyConfig{Context: "app", Dockerfile: "build/Dockerfile.ci"})
	Expect(err).NotTo(HaveOccurred())
}

func TestContextNoDockerignore(t *testing.T) {
	RegisterTestingT(t)
	fs := setup(t)

	afero.WriteFile(fs, "ctx/Dockerfile", []byte("FROM scratch\n"), 0644)
	afero.WriteFile(fs, "ctx/data.bin", make([]byte, 10), 0644)

	result, err := precheck.Context(schemav1.ConvoyConfig{Context: "ctx", Dockerfile: "ctx/Dockerfile"})
	Expect(err).NotTo(HaveOccurred())
	Expect(result.Files).To(Equal(2))
	Expect(result.Ignored).To(BeZero())
}
