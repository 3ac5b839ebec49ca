// Package ovf generates the OVF descriptor document registered with the
// remote engine at VM-creation time. It implements the engine package's
// DescriptorBuilder collaborator contract.
package ovf

import (
	"encoding/xml"
	"fmt"

	"github.com/virt-tools/engine-upload/internal/engine"
)

type envelope struct {
	XMLName    xml.Name `xml:"ovf:Envelope"`
	OvfNS      string   `xml:"xmlns:ovf,attr"`
	RasdNS     string   `xml:"xmlns:rasd,attr"`
	VssdNS     string   `xml:"xmlns:vssd,attr"`
	XsiNS      string   `xml:"xmlns:xsi,attr"`
	References struct {
		Files []fileRef `xml:"File"`
	} `xml:"References"`
	DiskSection   diskSection   `xml:"Section"`
	VirtualSystem virtualSystem `xml:"Content"`
}

type fileRef struct {
	Href string `xml:"ovf:href,attr"`
	ID   string `xml:"ovf:id,attr"`
	Size int64  `xml:"ovf:size,attr"`
}

type diskSection struct {
	Type  string    `xml:"xsi:type,attr"`
	Info  string    `xml:"Info"`
	Disks []ovfDisk `xml:"Disk"`
}

type ovfDisk struct {
	DiskID          string `xml:"ovf:diskId,attr"`
	Size            int64  `xml:"ovf:size,attr"`
	ActualSize      int64  `xml:"ovf:actual_size,attr"`
	Format          string `xml:"ovf:volume-format,attr"`
	Sparse          string `xml:"ovf:volume-type,attr"`
	FileRef         string `xml:"ovf:fileRef,attr"`
	StorageDomainID string `xml:"ovf:storageDomainId,attr"`
	Bootable        bool   `xml:"ovf:boot,attr"`
}

type virtualSystem struct {
	Type     string    `xml:"xsi:type,attr"`
	ID       string    `xml:"ovf:id,attr"`
	Name     string    `xml:"Name"`
	OS       osSection `xml:"OperatingSystemSection"`
	Hardware hwSection `xml:"Section"`
}

type osSection struct {
	ID   string `xml:"ovf:id,attr"`
	Info string `xml:"Info"`
	Desc string `xml:"Description"`
}

type hwSection struct {
	Type  string   `xml:"xsi:type,attr"`
	Info  string   `xml:"Info"`
	Items []hwItem `xml:"Item"`
}

type hwItem struct {
	Description     string `xml:"rasd:Description,omitempty"`
	ResourceType    int    `xml:"rasd:ResourceType"`
	NumCPUs         int    `xml:"rasd:num_of_sockets,omitempty"`
	CoresPerSocket  int    `xml:"rasd:cpu_per_socket,omitempty"`
	VirtualQuantity int64  `xml:"rasd:VirtualQuantity,omitempty"`
	AllocationUnits string `xml:"rasd:AllocationUnits,omitempty"`
	HostResource    string `xml:"rasd:HostResource,omitempty"`
}

// Builder produces an oVirt-flavoured OVF envelope.
type Builder struct{}

func NewBuilder() *Builder {
	return &Builder{}
}

// Build renders the descriptor for the given VM.
func (b *Builder) Build(info *engine.DescriptorInfo) ([]byte, error) {
	if info.Name == "" {
		return nil, fmt.Errorf("A VM name is required to build a descriptor")
	}

	if len(info.Disks) == 0 {
		return nil, fmt.Errorf("At least one disk is required to build a descriptor")
	}

	env := envelope{
		OvfNS:  "http://schemas.dmtf.org/ovf/envelope/1/",
		RasdNS: "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_ResourceAllocationSettingData",
		VssdNS: "http://schemas.dmtf.org/wbem/wscim/1/cim-schema/2/CIM_VirtualSystemSettingData",
		XsiNS:  "http://www.w3.org/2001/XMLSchema-instance",
	}

	env.DiskSection.Type = "ovf:DiskSection_Type"
	env.DiskSection.Info = "List of Virtual Disks"

	for i, disk := range info.Disks {
		volumeType := "Preallocated"
		if disk.Sparse {
			volumeType = "Sparse"
		}

		// The engine expects fileRef in the form <diskUUID>/<volumeUUID>.
		ref := disk.DiskUUID + "/" + disk.VolumeUUID

		env.References.Files = append(env.References.Files, fileRef{
			Href: ref,
			ID:   disk.VolumeUUID,
			Size: disk.Size,
		})

		env.DiskSection.Disks = append(env.DiskSection.Disks, ovfDisk{
			DiskID:          disk.VolumeUUID,
			Size:            disk.Size,
			ActualSize:      disk.Size,
			Format:          formatName(disk.Format),
			Sparse:          volumeType,
			FileRef:         ref,
			StorageDomainID: info.StorageDomainUUID,
			Bootable:        i == 0,
		})
	}

	env.VirtualSystem = virtualSystem{
		Type: "ovf:VirtualSystem_Type",
		ID:   info.VMUUID,
		Name: info.Name,
		OS: osSection{
			ID:   info.VMUUID,
			Info: "Guest Operating System",
			Desc: info.Guest.OSType,
		},
		Hardware: hwSection{
			Type: "ovf:VirtualHardwareSection_Type",
			Info: fmt.Sprintf("%d CPU, %d Memory", info.Guest.CPUs, info.Guest.MemoryMB),
			Items: []hwItem{
				{
					Description:    "Number of virtual CPU",
					ResourceType:   3,
					NumCPUs:        info.Guest.CPUs,
					CoresPerSocket: 1,
				},
				{
					Description:     "Memory Size",
					ResourceType:    4,
					VirtualQuantity: info.Guest.MemoryMB,
					AllocationUnits: "MegaBytes",
				},
			},
		},
	}

	content, err := xml.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, err
	}

	return append([]byte(xml.Header), content...), nil
}

func formatName(format string) string {
	if format == "qcow2" {
		return "COW"
	}

	return "RAW"
}
