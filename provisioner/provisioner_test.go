package provisioner

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	v1 "github.com/OpenLabsHQ/openlabs-api/api/v1"
	"github.com/OpenLabsHQ/openlabs-api/ranges"
)

func TestSplitEnv(t *testing.T) {
	g := NewWithT(t)

	name, value, found := splitEnv("PATH=/usr/bin:/bin")
	g.Expect(found).To(BeTrue())
	g.Expect(name).To(Equal("PATH"))
	g.Expect(value).To(Equal("/usr/bin:/bin"))

	name, value, found = splitEnv("EMPTY=")
	g.Expect(found).To(BeTrue())
	g.Expect(name).To(Equal("EMPTY"))
	g.Expect(value).To(BeEmpty())

	_, _, found = splitEnv("garbage")
	g.Expect(found).To(BeFalse())
}

func TestDeploySynthesisFailure(t *testing.T) {
	g := NewWithT(t)

	// A range with an unsupported region fails during synthesis, before
	// terraform is ever invoked.
	blueprint := v1.BlueprintRange{
		Name:     "bad",
		Provider: v1.ProviderAWS,
	}
	r, err := ranges.New(uuid.New(), "bad", "", blueprint, "atlantis_1", nil, "ssh-ed25519 AAAA test")
	g.Expect(err).ToNot(HaveOccurred())

	d := &Driver{Workdir: t.TempDir(), Binary: "terraform", Log: logr.Discard()}
	_, err = d.Deploy(context.Background(), r)
	g.Expect(errors.Is(err, ErrSynthesisFailed)).To(BeTrue())
}
