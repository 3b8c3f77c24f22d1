package api

import (
	"net/http"

	"golang.org/x/text/language"
)

type messageKey int

const (
	msgQuota messageKey = iota
	msgImageQuota
	msgUnexpected
	msgImageFailed
	msgTooShort
	msgBusy
	msgBadRequest
	msgUnauthorized
	msgNotFound
	msgXDisabled
)

var supportedLanguages = []language.Tag{language.Arabic, language.English}

var languageMatcher = language.NewMatcher(supportedLanguages)

var messages = map[language.Tag]map[messageKey]string{
	language.Arabic: {
		msgQuota:        "تم تجاوز الحصة المجانية للطلبات. يرجى الانتظار دقيقة قبل المحاولة مرة أخرى.",
		msgImageQuota:   "تم تجاوز حصة توليد الصور. يرجى الانتظار 60 ثانية.",
		msgUnexpected:   "حدث خطأ غير متوقع. يرجى المحاولة مرة أخرى.",
		msgImageFailed:  "لم نتمكن من توليد الصورة حالياً.",
		msgTooShort:     "النص قصير جداً. يرجى كتابة 50 حرفاً على الأقل.",
		msgBusy:         "الطلب قيد التنفيذ بالفعل.",
		msgBadRequest:   "طلب غير صالح.",
		msgUnauthorized: "الجلسة غير صالحة أو منتهية.",
		msgNotFound:     "لا توجد بيانات.",
		msgXDisabled:    "خدمة الملف الشخصي غير مفعلة.",
	},
	language.English: {
		msgQuota:        "Free request quota exceeded. Please wait a minute before trying again.",
		msgImageQuota:   "Image generation quota exceeded. Please wait 60 seconds.",
		msgUnexpected:   "An unexpected error occurred. Please try again.",
		msgImageFailed:  "We could not generate the image right now.",
		msgTooShort:     "The text is too short. Please write at least 50 characters.",
		msgBusy:         "This request is already in progress.",
		msgBadRequest:   "Invalid request.",
		msgUnauthorized: "Session is invalid or expired.",
		msgNotFound:     "Nothing stored yet.",
		msgXDisabled:    "Profile lookup is not configured.",
	},
}

// requestLanguage picks the response language from Accept-Language. Arabic
// is the default.
func requestLanguage(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.Arabic
	}
	_, idx, conf := languageMatcher.Match(tags...)
	if conf == language.No {
		return language.Arabic
	}
	return supportedLanguages[idx]
}

func localize(r *http.Request, key messageKey) string {
	return messages[requestLanguage(r)][key]
}
