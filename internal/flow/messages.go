package flow

// English bot messages. Texts that appear in the built-in translation table
// must match it exactly.
const (
	msgChooseLanguage    = "Please select your language:"
	msgWelcome           = "Welcome to the Resume Bot!\n\nPlease enter your verification code to begin."
	msgVerifiedFmt       = "Verification successful! Your session has started.\n\nYou have %d chances to generate a PDF resume."
	msgInvalidCodeFmt    = "That verification code is not valid. You have %d attempt(s) left."
	msgVerificationDown  = "Verification is temporarily unavailable. Please try again in a moment."
	msgVerificationLimit = "You have used all your verification attempts. For security reasons, this session has been terminated. Please /start again later."

	msgLanguageWarning   = "Please write your resume details in English only. Other languages cannot be used in the generated resume."
	msgLanguageTerminate = "You have repeatedly submitted information in a language other than English. For security reasons, this session has been terminated. Please /start again and follow the instructions."

	msgChooseInputMethod = "How would you like to provide your resume information?"
	msgFormTemplate      = "\nPlease copy the template below, fill in your details, and send it back in a single message.\n\n**Template:**\nName: [Your Name]\nBirthday: [Your Birthday]\nEmail: [Your Email]\nPhone: [Your Phone Number]\nWeb site: [Your Website URL]\nAddress: [Your Address]\nLanguage: [Your Language]\nNIC Number: [Your NIC Number]\n\nExperience 1:\n[Your Job Title], [Company], [Start Date - End Date], [Description]\n\nExperience 2:\n[Your Job Title], [Company], [Start Date - End Date], [Description]\n\nTo add more experience entries, just add a new line like:\nExperience 3: [Job Title], [Company], [Dates], [Description]\n\nEducation 1:\n[Your Degree], [University], [Graduation Year]\n\nEducation 2:\n[O/L or A/L], [School], [Year]\n\nTo add more education entries, just add a new line like:\nEducation 3: [Degree], [University], [Year]\n\nSkills:\n[Skill 1], [Rating 1-5]\n[Skill 2], [Rating 1-5]\n"
	msgProcessingForm    = "Thank you. I am now processing your information with AI. This may take a moment..."
	msgFormFailed        = "I'm sorry, I couldn't extract the information from your text. Please try filling out the template again carefully."
	msgFormExtracted     = "Here is the data I extracted from your template:\n\n"

	msgAskName             = "Great! Let's go step-by-step. What is your full name?"
	msgAskContacts         = "Thanks! Now, please provide your email and phone number.\n\nExample:\njohn.doe@email.com, 123-456-7890"
	msgInvalidContacts     = "Invalid format. Please provide both email and phone, separated by a comma."
	msgAskSummary          = "Contact info saved. Now, please write a professional summary about yourself."
	msgEnhancingSummary    = "Thanks. I'm now using AI to enhance your summary..."
	msgSummaryChoiceFmt    = "Here is the AI-enhanced version of your summary:\n\nAI Version:\n%s\n\nYour Version:\n%s\n\nWhich version would you like to use?"
	msgSummaryAIFailed     = "AI enhancement failed. Using your original summary."
	msgSummaryAISaved      = "Great, I've saved the AI-enhanced summary."
	msgSummaryOwnSaved     = "Okay, I've saved your original summary."
	msgReviewSummaryFmt    = "Current summary:\n\n%s\n\nReply 'yes' to keep it, or send a new summary."
	msgAskSkills           = "Now, list your skills and rate your proficiency from 1 to 5.\n\nFormat: Skill Name, Rating\nExample: Python, 5\n\nEnter one skill at a time. Click 'Done' when you are finished."
	msgReviewSkillsFmt     = "Here are your current skills:\n%s\n\nTo keep these, click 'Done'. To clear this list and add new skills, just start adding them now."
	msgSkillAddedFmt       = "'%s' with rating %d added. Enter another skill, or click 'Done'."
	msgInvalidSkill        = "Invalid format. Please use the format: Skill Name, Rating (e.g., Python, 5). The rating must be a number between 1 and 5."
	msgSkillsComplete      = "Skills section complete! Now, let's add your work experience."
	msgAskExperience       = "Please enter one job at a time using this format:\nJob Title, Company, Start Date - End Date, Key responsibilities or achievements\n\nExample:\nSoftware Engineer, Google, 2020 - Present, Developed a scalable web application that increased user engagement by 15%.\n\nClick 'Done' when you are finished."
	msgReviewExperienceFmt = "Here is your current work experience:\n%s\n\nTo keep it, click 'Done'. To clear and re-enter, just start typing your first job entry."
	msgExperienceAdded     = "Experience added. Enter another one, or click 'Done'."
	msgEnhancingExperience = "Experience section complete! I will now enhance the descriptions with AI..."
	msgExperienceEnhanced  = "Descriptions enhanced successfully!"
	msgExperienceAIFailed  = "AI enhancement failed, using your original descriptions."
	msgAskEducation        = "Please enter one education entry at a time using this format:\nDegree, University, Graduation Year\n\nExample:\nB.S. in Computer Science, MIT, 2020\n\nClick 'Done' when you are finished."
	msgReviewEducationFmt  = "Here is your current education:\n%s\n\nTo keep it, click 'Done'. To clear and re-enter, just start typing your first education entry."
	msgEducationAdded      = "Education entry added. Enter another one, or click 'Done'."
	msgAllCollected        = "All information collected!"

	msgAskPhoto          = "Would you like to add a profile photo?"
	msgUploadPhoto       = "Okay, please upload your profile photo now."
	msgPhotoSkipped      = "No problem. Let's move on to selecting an accent color."
	msgPhotoReceived     = "Photo received! Now, let's pick an accent color."
	msgPhotoFailed       = "Sorry, I couldn't save that photo. Please send another image or tap Skip."
	msgChooseColor       = "Please pick an accent color for your resume:"
	msgInvalidColor      = "Please choose one of the listed colors: Blue, Green, Red or Purple."
	msgChooseTemplate    = "Please choose a template from the following options:"
	msgInvalidTplFmt     = "Please send a template number between 1 and %d, or tap one of the options."
	msgTemplatePickedFmt = "Template selected: %s"

	msgAskReview            = "Would you like to review or edit your data before we generate the PDF?"
	msgReviewMenu           = "Please select a section to edit, or click 'Generate PDF' if you are ready."
	msgCurrentPersonal      = "Here are your current personal details:\n\n"
	msgPersonalInstructions = "\nPlease send the updated details in the same format, or send 'yes' to skip."
	msgInvalidPersonal      = "Invalid format. Please send your name, email and phone separated by commas, or 'yes' to keep them."
	msgPersonalUnchanged    = "No changes made to personal details."
	msgPersonalUpdated      = "Personal details updated."
	msgSummaryUnchanged     = "No changes made to summary."
	msgSkillsUnchanged      = "No changes made to skills."
	msgSkillsUpdated        = "Skills updated."
	msgExperienceUnchanged  = "No changes made to experience."
	msgExperienceUpdated    = "Experience updated."
	msgEducationUnchanged   = "No changes made to education."
	msgEducationUpdated     = "Education updated."

	msgAskTailor         = "Great! Would you like me to tailor your resume for a specific job description?"
	msgAskJobDescription = "Great! Please paste the job description below."
	msgTailoring         = "Analyzing the job description and tailoring your resume..."
	msgTailorChoiceFmt   = "Here are my suggestions:\n\nTailored Summary:\n%s\n\nSuggested Skills to Add:\n%s\n\nWould you like to apply the new summary to your resume?"
	msgTailorFailed      = "Sorry, the AI tailoring failed. I'll generate the resume with your original data."
	msgTailorApplied     = "Okay, I've updated your summary."
	msgTailorKept        = "No problem. I'll use your original summary."
	msgNoTailoring       = "Okay, I'll generate your resume with the information I have."

	msgGenerating       = "I'm now generating your resume..."
	msgDocumentCaption  = "Here is your generated resume!"
	msgGenerationFailed = "Sorry, something went wrong while generating your PDF."
	msgRemainingFmt     = "You can generate %d more PDF(s) in this session."
	msgWhatNext         = "What would you like to do next?"
	msgNewDesign        = "Let's pick a new design."
	msgNoAttemptsLeft   = "You have no more PDF generation attempts left. Please /start a new session to continue."
	msgFinished         = "Great! Feel free to start over any time with /start."
	msgCancelled        = "Operation cancelled."
	msgUnexpectedInput  = "Sorry, I was expecting different input. Please follow the instructions or type /cancel to start over."
	msgInactiveButton   = "Something went wrong! This button is not active. Please type /start to begin again."
	msgSessionExpired   = "Your session has expired due to inactivity. Please type /start to begin again."
	msgAdminOnly        = "Sorry, this command is only available to administrators."
	msgNoUsers          = "No resumes have been generated yet."
	msgUsersHeaderFmt   = "Users who generated a resume (%d):\n%s"
)

// Button payloads.
const (
	dataLangEnglish = "lang:en"
	dataLangSinhala = "lang:si"

	dataMethodForm  = "method:form"
	dataMethodSteps = "method:steps"

	dataSummaryAI  = "summary:ai"
	dataSummaryOwn = "summary:own"
	dataDone       = "done"

	dataPhotoYes = "photo:yes"
	dataPhotoNo  = "photo:no"

	dataColorPrefix    = "color:"
	dataTemplatePrefix = "tpl:"
	dataTemplateRandom = "tpl:random"

	dataReviewYes = "review:yes"
	dataReviewNo  = "review:no"

	dataEditPersonal   = "edit:personal"
	dataEditSummary    = "edit:summary"
	dataEditSkills     = "edit:skills"
	dataEditExperience = "edit:experience"
	dataEditEducation  = "edit:education"
	dataEditDone       = "edit:done"

	dataTailorYes   = "tailor:yes"
	dataTailorNo    = "tailor:no"
	dataTailorApply = "tailor:apply"
	dataTailorKeep  = "tailor:keep"

	dataRegenerate = "regen:yes"
	dataFinish     = "regen:finish"
)

// Button labels.
const (
	labelEnglish      = "English"
	labelSinhala      = "සිංහල"
	labelFillTemplate = "📋 Fill a template"
	labelStepByStep   = "📝 Step by step"
	labelUseAI        = "✅ Use AI Version"
	labelKeepMine     = "✍️ Keep My Version"
	labelDone         = DoneSentinel
	labelAddPhoto     = "📷 Add a photo"
	labelSkipPhoto    = "⏭️ Skip"
	labelSurprise     = "🎲 Surprise me"
	keySurprise       = "S"
	labelReview       = "✍️ Review my data"
	labelLooksGood    = "👍 Looks good"
	labelPersonal     = "Personal details"
	labelSummary      = "Summary"
	labelSkills       = "Skills"
	labelExperience   = "Experience"
	labelEducation    = "Education"
	labelGeneratePDF  = "Generate PDF"
	labelTailorYes    = "✅ Yes, please!"
	labelTailorNo     = "❌ No, thanks"
	labelApply        = "✅ Apply Changes"
	labelKeepOriginal = "❌ Keep Original"
	labelRegenerate   = "🎨 Regenerate with New Design"
	labelFinish       = "✅ Finish"
)
