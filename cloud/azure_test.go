package cloud

import (
	"testing"

	. "github.com/onsi/gomega"
)

func TestParseVMResourceID(t *testing.T) {
	g := NewWithT(t)

	id := "/subscriptions/0000/resourceGroups/demo-rg/providers/Microsoft.Compute/virtualMachines/web01"
	rg, vm, err := parseVMResourceID(id)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(rg).To(Equal("demo-rg"))
	g.Expect(vm).To(Equal("web01"))

	_, _, err = parseVMResourceID("i-0abc123")
	g.Expect(err).To(HaveOccurred())
}
