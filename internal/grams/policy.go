package grams

import "github.com/anoixa/grammable/database/models"

// CanModify 只有作者可以修改或删除 gram
func CanModify(requesterID uint, gram *models.Gram) bool {
	return gram != nil && gram.OwnedBy(requesterID)
}
