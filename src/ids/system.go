package ids

// Well-known entity ids of the knowledge graph ontology.
const (
	NameAttribute        = "a126ca530c8e48d5b88882c734c38935"
	DescriptionAttribute = "9b1f76ff9711404c861e59dc3fa7d037"
	TypesAttribute       = "8f151ba4de204e3c9cb499ddf96f48f1"
	AttributeType        = "808a04ceb21c4d888ad12e240613e5ca"
	SchemaType           = "d7ab40920ab5441e88c35c27952de773"
	PersonType           = "af7ae93b97d64aedad690c1d3da149a1"
	ImageAttribute       = "457a27af7b0b485cac07aa37756adafa"

	RootSpaceAddress = "0xEcC4016C71fF38B32f01538207B6F0FdcbCF99f5"
	// GeoBotAddress is recorded as the author of content published without
	// a governance proposal.
	GeoBotAddress = "0x66703c058795B9Cb215fbcc7c6b07aee7D216F24"
)

// SystemNames are the display names written when the root space is bootstrapped.
var SystemNames = map[string]string{
	NameAttribute:        "Name",
	DescriptionAttribute: "Description",
	TypesAttribute:       "Types",
	AttributeType:        "Attribute",
	SchemaType:           "Type",
	PersonType:           "Person",
	ImageAttribute:       "Image",
}
