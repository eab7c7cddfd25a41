package domain

// TreeCertificate records a planted tree.
type TreeCertificate struct {
	Species  string `json:"species"`
	Location string `json:"location"`
}

func (c TreeCertificate) Category() string {
	return c.Species
}

func (TreeCertificate) NotFound() TreeCertificate {
	return TreeCertificate{
		Species:  NotFoundMarker,
		Location: NotFoundMarker,
	}
}

// ArtPiece describes an art piece built from upcycled material.
type ArtPiece struct {
	Title       string `json:"title"`
	Materials   string `json:"materials"`
	Description string `json:"description"`
}

func (a ArtPiece) Category() string {
	return a.Materials
}

func (ArtPiece) NotFound() ArtPiece {
	return ArtPiece{
		Title:       NotFoundMarker,
		Materials:   NotFoundMarker,
		Description: NotFoundMarker,
	}
}

const (
	CertificateRegistry = "certificates"
	ArtPieceRegistry    = "artpieces"
)
