package unsea

// ResourceName is the identifier under which node's SEA tooling injects the
// preparation blob (postject <exe> NODE_SEA_BLOB sea.blob). Each container
// format stores it slightly differently; the constants below are the exact
// forms to match per format.
const ResourceName = "NODE_SEA_BLOB"

const (
	// ELF: the injected section (and note owner) carries the full name.
	elfSectionName = ResourceName

	// PE: section names hold 8 bytes, so the name arrives truncated.
	peSectionName = "NODE_SEA"

	// Mach-O: node's documented segment name; the section inside it carries
	// the resource name verbatim.
	machoSegmentName = "NODE_SEA"
	machoSectionName = ResourceName

	// postject's default segment when --macho-segment-name is not given.
	machoPostjectSegment = "__POSTJECT"
)
