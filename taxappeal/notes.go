package taxappeal

import (
	"context"

	"github.com/pkg/errors"
)

const notesPath = "/api/v1/auth/explanatory_note/"

// AppealPoint is one point the taxpayer raises against an assessment.
type AppealPoint struct {
	AppealID          string `json:"AppealId,omitempty"`
	AppealPoint       string `json:"appealPoint"`
	SummarisedProblem string `json:"summarisedProblem"`
	AuditorsOpinion   string `json:"auditorsOpinion"`
	ProposedSolution  string `json:"proposedSolution"`
}

// AuditedTax is the assessment for one tax type.
type AuditedTax struct {
	TaxAuditedID             string        `json:"taxAuditedId,omitempty"`
	TaxTypeAudited           string        `json:"taxTypeAudited"`
	PrincipalAmountToBePaid  float64       `json:"principalAmountToBePaid"`
	UnderstatementFines      float64       `json:"understatementFines"`
	FixedAdministrativeFines float64       `json:"fixedAdministrativeFines"`
	DischargedAmount         float64       `json:"dischargedAmount"`
	OtherFines               float64       `json:"otherFines"`
	TotalTaxAndFinesToBePaid float64       `json:"totalTaxAndFinesToBePaid"`
	Appeals                  []AppealPoint `json:"appeals"`
}

// Total returns the sum of the principal and every fine, less the
// discharged amount.
func (t *AuditedTax) Total() float64 {
	return t.PrincipalAmountToBePaid + t.UnderstatementFines + t.FixedAdministrativeFines +
		t.OtherFines - t.DischargedAmount
}

// ExplanatoryNote describes a case. Dates are yyyy-mm-dd.
type ExplanatoryNote struct {
	CaseID                                     string       `json:"caseId"`
	AuditorsName                               string       `json:"auditorsName"`
	TaxAssessmentAcknowledgementDateByTaxpayer string       `json:"taxAssessmentAcknowledgementDateByTaxpayer,omitempty"`
	TaxAssessmentTime                          string       `json:"taxAssessmentTime,omitempty"`
	AppealDate                                 string       `json:"appealDate,omitempty"`
	AppealExpireDate                           string       `json:"appealExpireDate,omitempty"`
	CasePresenter                              string       `json:"casePresenter"`
	TIN                                        string       `json:"tin"`
	AttachmentLink                             string       `json:"attachmentLink,omitempty"`
	Status                                     CaseStatus   `json:"status,omitempty"`
	PreparatorSubmissionDate                   string       `json:"preparatorSubmissionDate,omitempty"`
	TaxAudited                                 []AuditedTax `json:"taxAudited"`
}

// Appeal finds an appeal point and the tax type it belongs to.
func (n *ExplanatoryNote) Appeal(appealID string) (*AppealPoint, string, bool) {
	for i := range n.TaxAudited {
		for j := range n.TaxAudited[i].Appeals {
			if n.TaxAudited[i].Appeals[j].AppealID == appealID {
				return &n.TaxAudited[i].Appeals[j], n.TaxAudited[i].TaxTypeAudited, true
			}
		}
	}
	return nil, "", false
}

// AppealIDs lists every appeal point id in the note.
func (n *ExplanatoryNote) AppealIDs() []string {
	var ids []string
	for _, t := range n.TaxAudited {
		for _, a := range t.Appeals {
			if a.AppealID != "" {
				ids = append(ids, a.AppealID)
			}
		}
	}
	return ids
}

func (s *Service) Note(ctx context.Context, caseID string) (*ExplanatoryNote, error) {
	if err := requireID("case id", caseID); err != nil {
		return nil, err
	}
	note, err := getData[ExplanatoryNote](ctx, s.client, notesPath+escape(caseID), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "[Service.Note] case %s", caseID)
	}
	return &note, nil
}

// CreateNote submits a new explanatory note.
func (s *Service) CreateNote(ctx context.Context, note *ExplanatoryNote) (*Response[ExplanatoryNote], error) {
	var resp Response[ExplanatoryNote]
	if err := s.client.Post(ctx, notesPath, note, &resp); err != nil {
		return nil, errors.Wrap(err, "[Service.CreateNote]")
	}
	return &resp, nil
}

// UpdateNote replaces a note and resubmits it.
func (s *Service) UpdateNote(ctx context.Context, caseID string, note *ExplanatoryNote) error {
	if err := requireID("case id", caseID); err != nil {
		return err
	}
	if err := s.client.Put(ctx, notesPath+escape(caseID), note, nil); err != nil {
		return errors.Wrapf(err, "[Service.UpdateNote] case %s", caseID)
	}
	return nil
}

// SaveNote stores a draft without changing the case status.
func (s *Service) SaveNote(ctx context.Context, caseID string, note *ExplanatoryNote) error {
	if err := requireID("case id", caseID); err != nil {
		return err
	}
	if err := s.client.Put(ctx, notesPath+escape(caseID)+"/save", note, nil); err != nil {
		return errors.Wrapf(err, "[Service.SaveNote] case %s", caseID)
	}
	return nil
}

// MoveToPreAppeal saves the note, then moves the case to pre-appeal.
func (s *Service) MoveToPreAppeal(ctx context.Context, caseID string, note *ExplanatoryNote) error {
	if err := s.SaveNote(ctx, caseID, note); err != nil {
		return err
	}
	if err := s.client.Post(ctx, notesPath+escape(caseID)+"/move-to-pre-appeal", nil, nil); err != nil {
		return errors.Wrapf(err, "[Service.MoveToPreAppeal] case %s", caseID)
	}
	return nil
}

func (s *Service) DeleteNote(ctx context.Context, caseID string) error {
	if err := requireID("case id", caseID); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, notesPath+escape(caseID), nil); err != nil {
		return errors.Wrapf(err, "[Service.DeleteNote] case %s", caseID)
	}
	return nil
}

// AppealComment returns the committee's decision comment for an appeal
// point. The backend serves it from a POST.
func (s *Service) AppealComment(ctx context.Context, appealID string) (string, error) {
	if err := requireID("appeal id", appealID); err != nil {
		return "", err
	}
	var resp struct {
		Comment string `json:"comment"`
	}
	if err := s.client.Post(ctx, notesPath+"appeal/comment/"+escape(appealID), nil, &resp); err != nil {
		return "", errors.Wrapf(err, "[Service.AppealComment] appeal %s", appealID)
	}
	return resp.Comment, nil
}
