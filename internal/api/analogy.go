package api

import (
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/relprobe/relprobe/internal/score"
	"github.com/relprobe/relprobe/internal/template"
)

type perplexityRequest struct {
	Sentences []string `json:"sentences"`
}

type perplexityResponse struct {
	Model      string    `json:"model"`
	Perplexity []float64 `json:"perplexity"`
}

func (s *Server) handlePerplexity(c *echo.Context) error {
	if s.scorer == nil {
		return writeServerError(c, "no model bound")
	}
	req, err := decodeJSON[perplexityRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if len(req.Sentences) == 0 {
		return writeBadRequest(c, "sentences required")
	}
	ppls, err := s.scorer.Perplexity(c.Request().Context(), req.Sentences)
	if err != nil {
		return writeServerError(c, err.Error())
	}
	return c.JSON(http.StatusOK, perplexityResponse{
		Model:      s.scorer.Info().Model,
		Perplexity: ppls,
	})
}

// analogyRequest carries one question plus the scoring knobs. Omitted
// knobs fall back to the scoring defaults (mean aggregation, lambda 1);
// a zero negative weight leaves negative permutations out entirely.
type analogyRequest struct {
	Stem   [2]string   `json:"stem"`
	Choice [][2]string `json:"choice"`

	ScoringMethod string   `json:"scoring_method"`
	TemplateTypes []string `json:"template_types"`

	PositivePermutationAggregation string   `json:"positive_permutation_aggregation"`
	NegativePermutationAggregation string   `json:"negative_permutation_aggregation"`
	NegativePermutationWeight      float64  `json:"negative_permutation_weight"`
	PPLPMIAggregation              string   `json:"ppl_pmi_aggregation"`
	PPLPMILambda                   *float64 `json:"ppl_pmi_lambda"`
	PMIAggregation                 string   `json:"pmi_aggregation"`
	PMIFeldmanLambda               *float64 `json:"pmi_feldman_lambda"`
	Prefix                         string   `json:"prefix"`
}

type analogyResponse struct {
	Model         string    `json:"model"`
	ScoringMethod string    `json:"scoring_method"`
	Scores        []float64 `json:"scores"`
	Prediction    int       `json:"prediction"`
}

func (s *Server) handleAnalogy(c *echo.Context) error {
	if s.scorer == nil {
		return writeServerError(c, "no model bound")
	}
	req, err := decodeJSON[analogyRequest](c.Request().Body)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	if req.Stem[0] == "" || req.Stem[1] == "" {
		return writeBadRequest(c, "stem requires two words")
	}
	if len(req.Choice) == 0 {
		return writeBadRequest(c, "choice pairs required")
	}
	for _, ch := range req.Choice {
		if ch[0] == "" || ch[1] == "" {
			return writeBadRequest(c, "every choice requires two words")
		}
	}

	methodName := req.ScoringMethod
	if methodName == "" {
		methodName = string(score.MethodPPL)
	}
	method, err := score.ParseMethod(methodName)
	if err != nil {
		return writeBadRequest(c, err.Error())
	}
	names := req.TemplateTypes
	if len(names) == 0 {
		names = []string{string(template.IsToAs)}
	}
	kinds := make([]template.Kind, len(names))
	for i, name := range names {
		if kinds[i], err = template.Parse(name); err != nil {
			return writeBadRequest(c, err.Error())
		}
	}
	opts := score.Options{
		PositiveAggregation: req.PositivePermutationAggregation,
		NegativeAggregation: req.NegativePermutationAggregation,
		NegativeWeight:      req.NegativePermutationWeight,
		PPLPMIAggregation:   req.PPLPMIAggregation,
		PMIAggregation:      req.PMIAggregation,
		PPLPMILambda:        req.PPLPMILambda,
		PMIFeldmanLambda:    req.PMIFeldmanLambda,
	}

	ctx := c.Request().Context()
	scores := make([]float64, len(req.Choice))
	prediction := 0
	for i, choice := range req.Choice {
		prims, err := s.scorer.Primitives(ctx, method, req.Stem, choice, kinds, req.Prefix)
		if err != nil {
			return writeServerError(c, err.Error())
		}
		if scores[i], err = score.ChoiceScore(method, prims, opts); err != nil {
			return writeServerError(c, err.Error())
		}
		if scores[i] > scores[prediction] {
			prediction = i
		}
	}
	return c.JSON(http.StatusOK, analogyResponse{
		Model:         s.scorer.Info().Model,
		ScoringMethod: string(method),
		Scores:        scores,
		Prediction:    prediction,
	})
}
