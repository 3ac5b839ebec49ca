package ovf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/virt-tools/engine-upload/internal/engine"
	"github.com/virt-tools/engine-upload/internal/ovf"
)

func descriptorInfo() *engine.DescriptorInfo {
	return &engine.DescriptorInfo{
		Name: "test-vm",
		Guest: engine.GuestInfo{
			Arch:     "x86_64",
			CPUs:     4,
			MemoryMB: 4096,
			OSType:   "rhel_9x64",
		},
		StorageDomainUUID: "11111111-2222-3333-4444-555555555555",
		VMUUID:            "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee",
		Platform:          "rhv",
		Disks: []engine.DescriptorDisk{
			{
				Size:       10 * 1024 * 1024 * 1024,
				Format:     "qcow2",
				Sparse:     true,
				DiskUUID:   "d1d1d1d1-0000-0000-0000-000000000001",
				VolumeUUID: "e1e1e1e1-0000-0000-0000-000000000001",
			},
			{
				Size:       1024 * 1024 * 1024,
				Format:     "raw",
				Sparse:     false,
				DiskUUID:   "d2d2d2d2-0000-0000-0000-000000000002",
				VolumeUUID: "e2e2e2e2-0000-0000-0000-000000000002",
			},
		},
	}
}

func TestBuildEnvelope(t *testing.T) {
	content, err := ovf.NewBuilder().Build(descriptorInfo())
	require.NoError(t, err)

	doc := string(content)
	require.True(t, strings.HasPrefix(doc, "<?xml"))
	require.Contains(t, doc, "<ovf:Envelope")
	require.Contains(t, doc, "<Name>test-vm</Name>")

	// File references use the <diskUUID>/<volumeUUID> path the engine
	// resolves inside the storage domain.
	require.Contains(t, doc, `ovf:fileRef="d1d1d1d1-0000-0000-0000-000000000001/e1e1e1e1-0000-0000-0000-000000000001"`)
	require.Contains(t, doc, `ovf:fileRef="d2d2d2d2-0000-0000-0000-000000000002/e2e2e2e2-0000-0000-0000-000000000002"`)

	require.Contains(t, doc, `ovf:storageDomainId="11111111-2222-3333-4444-555555555555"`)
}

func TestBuildVolumeFormats(t *testing.T) {
	content, err := ovf.NewBuilder().Build(descriptorInfo())
	require.NoError(t, err)

	doc := string(content)

	// qcow2 maps to a sparse COW volume, raw to a preallocated one.
	require.Contains(t, doc, `ovf:volume-format="COW"`)
	require.Contains(t, doc, `ovf:volume-type="Sparse"`)
	require.Contains(t, doc, `ovf:volume-format="RAW"`)
	require.Contains(t, doc, `ovf:volume-type="Preallocated"`)
}

func TestBuildFirstDiskBootable(t *testing.T) {
	content, err := ovf.NewBuilder().Build(descriptorInfo())
	require.NoError(t, err)

	doc := string(content)
	first := strings.Index(doc, `ovf:boot="true"`)
	second := strings.Index(doc, `ovf:boot="false"`)
	require.Greater(t, first, 0)
	require.Greater(t, second, first)
}

func TestBuildHardware(t *testing.T) {
	content, err := ovf.NewBuilder().Build(descriptorInfo())
	require.NoError(t, err)

	doc := string(content)
	require.Contains(t, doc, "<rasd:num_of_sockets>4</rasd:num_of_sockets>")
	require.Contains(t, doc, "<rasd:VirtualQuantity>4096</rasd:VirtualQuantity>")
	require.Contains(t, doc, "rhel_9x64")
}

func TestBuildRejectsEmptyInput(t *testing.T) {
	builder := ovf.NewBuilder()

	info := descriptorInfo()
	info.Name = ""
	_, err := builder.Build(info)
	require.Error(t, err)

	info = descriptorInfo()
	info.Disks = nil
	_, err = builder.Build(info)
	require.Error(t, err)
}
