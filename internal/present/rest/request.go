package rest

import (
	"github.com/labstack/echo/v4"

	"github.com/totegamma/greenledger/internal/domain"
)

type createCertificateRequest struct {
	Owner    string `json:"owner"`
	Species  string `json:"species"`
	Location string `json:"location"`
}

type createArtPieceRequest struct {
	Owner       string `json:"owner"`
	Title       string `json:"title"`
	Materials   string `json:"materials"`
	Description string `json:"description"`
}

func bindCertificate(c echo.Context) (string, domain.TreeCertificate, error) {
	var req createCertificateRequest
	if err := c.Bind(&req); err != nil {
		return "", domain.TreeCertificate{}, err
	}
	return req.Owner, domain.TreeCertificate{
		Species:  req.Species,
		Location: req.Location,
	}, nil
}

func bindArtPiece(c echo.Context) (string, domain.ArtPiece, error) {
	var req createArtPieceRequest
	if err := c.Bind(&req); err != nil {
		return "", domain.ArtPiece{}, err
	}
	return req.Owner, domain.ArtPiece{
		Title:       req.Title,
		Materials:   req.Materials,
		Description: req.Description,
	}, nil
}
