// Package v1 defines the request/response schema for the OpenLabs API
// and the domain validation rules applied on ingest.
package v1

import "fmt"

// Provider is a supported cloud provider.
type Provider string

const (
	ProviderAWS   Provider = "aws"
	ProviderAzure Provider = "azure"
)

// Valid reports whether p names a supported provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAWS, ProviderAzure:
		return true
	}
	return false
}

// Region is a supported deployment region, provider-neutral.
type Region string

const (
	RegionUSEast1 Region = "us_east_1"
	RegionUSEast2 Region = "us_east_2"
)

// Valid reports whether r names a supported region.
func (r Region) Valid() bool {
	switch r {
	case RegionUSEast1, RegionUSEast2:
		return true
	}
	return false
}

// AWSRegions maps regions to AWS region names.
var AWSRegions = map[Region]string{
	RegionUSEast1: "us-east-1",
	RegionUSEast2: "us-east-2",
}

// AzureRegions maps regions to Azure location names.
var AzureRegions = map[Region]string{
	RegionUSEast1: "eastus",
	RegionUSEast2: "eastus2",
}

// OS is a supported host operating system.
type OS string

const (
	OSDebian11    OS = "debian_11"
	OSDebian12    OS = "debian_12"
	OSUbuntu20    OS = "ubuntu_20"
	OSUbuntu22    OS = "ubuntu_22"
	OSUbuntu24    OS = "ubuntu_24"
	OSSuse12      OS = "suse_12"
	OSSuse15      OS = "suse_15"
	OSKali        OS = "kali"
	OSWindows2016 OS = "windows_2016"
	OSWindows2019 OS = "windows_2019"
	OSWindows2022 OS = "windows_2022"
)

// AWSImages maps operating systems to AMIs (us-east-1 lineage).
var AWSImages = map[OS]string{
	OSDebian11:    "ami-053413bdacb39d8dc",
	OSDebian12:    "ami-0e8087266e36fe754",
	OSUbuntu20:    "ami-014f7ab33242ea43c",
	OSUbuntu22:    "ami-0e1bed4f06a3b463d",
	OSUbuntu24:    "ami-04b4f1a9cf54c11d0",
	OSSuse12:      "ami-0d6a3fb3bfdd87b52",
	OSSuse15:      "ami-0d9f9dbae7b9a241d",
	OSKali:        "ami-02be3d7604aff56a7",
	OSWindows2016: "ami-032ec7a32b7fb247c",
	OSWindows2019: "ami-049dd04cca2dc5594",
	OSWindows2022: "ami-0a0ebee827a585d06",
}

// AzureImages maps operating systems to image URNs
// (<publisher>:<offer>:<sku>:<version>).
var AzureImages = map[OS]string{
	OSDebian11:    "Debian:debian-11:11-backports-gen2:latest",
	OSDebian12:    "Debian:debian-12:12-gen2:latest",
	OSUbuntu20:    "Canonical:0001-com-ubuntu-server-focal:20_04-lts-gen2:latest",
	OSUbuntu22:    "Canonical:0001-com-ubuntu-server-jammy:22_04-lts-gen2:latest",
	OSUbuntu24:    "Canonical:ubuntu-24_04-lts:server:latest",
	OSSuse12:      "SUSE:sles-12-sp5:gen2:latest",
	OSSuse15:      "SUSE:sles-15-sp5:gen2:latest",
	OSKali:        "kali-linux:kali:kali-2024-4:2024.4.1",
	OSWindows2016: "MicrosoftWindowsServer:WindowsServer:2016-datacenter-gensecond:latest",
	OSWindows2019: "MicrosoftWindowsServer:WindowsServer:2019-datacenter-gensecond:latest",
	OSWindows2022: "MicrosoftWindowsServer:WindowsServer:2022-datacenter-g2:latest",
}

// MinDiskGB maps operating systems to the minimum disk size in GB.
var MinDiskGB = map[OS]int{
	OSDebian11:    8,
	OSDebian12:    8,
	OSUbuntu20:    8,
	OSUbuntu22:    8,
	OSUbuntu24:    8,
	OSSuse12:      8,
	OSSuse15:      8,
	OSKali:        32,
	OSWindows2016: 32,
	OSWindows2019: 32,
	OSWindows2022: 32,
}

// Valid reports whether o names a supported operating system.
func (o OS) Valid() bool {
	_, ok := MinDiskGB[o]
	return ok
}

// Spec is a supported VM hardware size.
type Spec string

const (
	SpecTiny   Spec = "tiny"
	SpecSmall  Spec = "small"
	SpecMedium Spec = "medium"
	SpecLarge  Spec = "large"
	SpecHuge   Spec = "huge"
)

// AWSInstanceTypes maps specs to EC2 instance types.
var AWSInstanceTypes = map[Spec]string{
	SpecTiny:   "t2.nano",
	SpecSmall:  "t2.small",
	SpecMedium: "t2.medium",
	SpecLarge:  "t2.large",
	SpecHuge:   "t2.xlarge",
}

// AzureVMSizes maps specs to Azure VM sizes.
var AzureVMSizes = map[Spec]string{
	SpecTiny:   "Standard_B1ls2",
	SpecSmall:  "Standard_B1ms",
	SpecMedium: "Standard_B2s",
	SpecLarge:  "Standard_B2ms",
	SpecHuge:   "Standard_B4ms",
}

// Valid reports whether s names a supported spec.
func (s Spec) Valid() bool {
	_, ok := AWSInstanceTypes[s]
	return ok
}

// RangeState is the lifecycle state of a deployed range.
type RangeState string

const (
	RangeStateNone         RangeState = "none"
	RangeStateSynthesizing RangeState = "synthesizing"
	RangeStateApplying     RangeState = "applying"
	RangeStateOn           RangeState = "on"
	RangeStateDestroying   RangeState = "destroying"
	RangeStateFailed       RangeState = "failed"
)

// JobStatus is the externally visible status of a queued job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusComplete   JobStatus = "complete"
	JobStatusFailed     JobStatus = "failed"
	JobStatusNotFound   JobStatus = "not_found"
)

// Terminal reports whether the status can no longer change.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusFailed
}

// Valid reports whether s is a persistable job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusInProgress, JobStatusComplete, JobStatusFailed:
		return true
	}
	return false
}

// PowerAction is a runtime power operation on deployed hosts.
type PowerAction string

const (
	PowerActionOn      PowerAction = "on"
	PowerActionOff     PowerAction = "off"
	PowerActionRestart PowerAction = "restart"
)

// Valid reports whether a names a supported power action.
func (a PowerAction) Valid() bool {
	switch a {
	case PowerActionOn, PowerActionOff, PowerActionRestart:
		return true
	}
	return false
}

// Job submission detail messages returned with a 202.
const (
	DetailDBSaveSuccess = "Job accepted and initial status recorded."
	DetailDBSaveFailure = "Job accepted, status will be available shortly."
)

// ErrUnsupported builds the standard error for enum values outside the
// supported set.
func ErrUnsupported(kind string, value any) error {
	return fmt.Errorf("unsupported %s: %v", kind, value)
}
